package store

import "context"

// Schema matches spec §6's table: users/friendships/chats/feedback. The
// serial/autoincrement spelling is the only per-dialect variation; every
// other column is portable across mysql/postgres/sqlite.
func (s *Store) initSchema(ctx context.Context) error {
	var idType string
	switch s.dialect {
	case "postgres":
		idType = "SERIAL PRIMARY KEY"
	case "sqlite":
		idType = "INTEGER PRIMARY KEY AUTOINCREMENT"
	default: // mysql
		idType = "INT AUTO_INCREMENT PRIMARY KEY"
	}

	statements := []string{
		"CREATE TABLE IF NOT EXISTS users (" +
			"id " + idType + ", " +
			"name VARCHAR(255) UNIQUE NOT NULL, " +
			"password VARCHAR(255) NOT NULL, " +
			"system_prompt TEXT, " +
			"profile_image_path VARCHAR(255), " +
			"agent_profile_image_path VARCHAR(255), " +
			"guide_seen INT DEFAULT 0" +
			")",
		"CREATE TABLE IF NOT EXISTS friendships (" +
			"user_id INT NOT NULL, " +
			"friend_id INT NOT NULL, " +
			"PRIMARY KEY (user_id, friend_id), " +
			"CHECK (user_id <> friend_id)" +
			")",
		"CREATE TABLE IF NOT EXISTS chats (" +
			"id " + idType + ", " +
			"sender VARCHAR(255) NOT NULL, " +
			"receiver VARCHAR(255) NOT NULL, " +
			"message TEXT NOT NULL, " +
			"communication_history TEXT, " +
			"timestamp TIMESTAMP NOT NULL" +
			")",
		"CREATE TABLE IF NOT EXISTS feedback (" +
			"id " + idType + ", " +
			"sender VARCHAR(255) NOT NULL, " +
			"receiver VARCHAR(255) NOT NULL, " +
			"conclusion TEXT, " +
			"communication_history TEXT, " +
			"feedback VARCHAR(255), " +
			"timestamp TIMESTAMP NOT NULL" +
			")",
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &Error{Operation: "init_schema", Message: "failed to create schema", Err: err}
		}
	}
	return nil
}
