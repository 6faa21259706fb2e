package model

import "strings"

// Connection describes one registered database server. JSON tags match the
// on-disk connections.json format.
type Connection struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Pass     string `json:"pass"`
	SavePass bool   `json:"savePass"`
}

// DSN builds a keyword/value conninfo string for one database on this
// server. An empty password is omitted so the driver falls back to
// PGPASSWORD from the environment.
func (c Connection) DSN(dbname, sslmode string) string {
	var sb strings.Builder
	writeConnOption(&sb, "host", c.Host)
	writeConnOption(&sb, "port", c.Port)
	writeConnOption(&sb, "user", c.User)
	if c.Pass != "" {
		writeConnOption(&sb, "password", c.Pass)
	}
	writeConnOption(&sb, "dbname", dbname)
	writeConnOption(&sb, "sslmode", sslmode)
	return sb.String()
}

func writeConnOption(sb *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	if sb.Len() > 0 {
		sb.WriteByte(' ')
	}
	sb.WriteString(key)
	sb.WriteByte('=')
	sb.WriteString(quoteConnValue(value))
}

// quoteConnValue single-quotes values the conninfo grammar cannot take bare
func quoteConnValue(v string) string {
	if !strings.ContainsAny(v, " '\\") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
