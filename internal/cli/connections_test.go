package cli

import (
	"testing"

	"github.com/WarPigBRZ/BelugaDB/internal/model"
)

func TestFormatConnection(t *testing.T) {
	conn := model.Connection{Name: "prod", Host: "db.internal", Port: "5433", User: "beluga"}
	got := formatConnection(conn)
	if got != "prod  beluga@db.internal:5433" {
		t.Fatalf("formatConnection = %q", got)
	}
}
