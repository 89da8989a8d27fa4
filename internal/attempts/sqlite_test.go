package attempts

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenDisabled(t *testing.T) {
	st, err := Open(context.Background(), "", "")
	if err != nil || st != nil {
		t.Fatalf("Open(\"\") = %v, %v; want nil, nil", st, err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mongo", "x"); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("err = %v, want ErrUnknownDriver", err)
	}
}

func TestSQLiteRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "attempts.db")
	st, err := Open(ctx, "sqlite", path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, o := range []Outcome{NoDate, Ban, Rescheduled} {
		err := st.Record(ctx, Attempt{
			RunID:     "run-1",
			Outcome:   o,
			Requests:  i + 1,
			Detail:    string(o),
			CreatedAt: at.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := st.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d rows", len(got))
	}
	if got[0].Outcome != Rescheduled || got[1].Outcome != Ban {
		t.Fatalf("order = %s, %s; want newest first", got[0].Outcome, got[1].Outcome)
	}
	if !got[0].CreatedAt.Equal(at.Add(2 * time.Minute)) {
		t.Fatalf("CreatedAt = %s", got[0].CreatedAt)
	}
	if got[0].RunID != "run-1" || got[0].Requests != 3 {
		t.Fatalf("row = %+v", got[0])
	}
}
