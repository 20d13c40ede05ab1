package store

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSettingsRoundTrip(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if _, ok, err := st.GetSetting(ctx, "port"); err != nil || ok {
		t.Fatalf("expected no setting yet, ok=%v err=%v", ok, err)
	}

	if err := st.PutSetting(ctx, "port", "3000"); err != nil {
		t.Fatalf("put setting: %v", err)
	}
	v, ok, err := st.GetSetting(ctx, "port")
	if err != nil || !ok {
		t.Fatalf("expected setting, ok=%v err=%v", ok, err)
	}
	if v != "3000" {
		t.Fatalf("value = %q, want 3000", v)
	}

	if err := st.PutSetting(ctx, "port", "4000"); err != nil {
		t.Fatalf("update setting: %v", err)
	}
	v, _, _ = st.GetSetting(ctx, "port")
	if v != "4000" {
		t.Fatalf("value after update = %q, want 4000", v)
	}
}

func TestLastStateRoundTrip(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if _, ok, err := st.LoadLastState(ctx); err != nil || ok {
		t.Fatalf("expected no last state yet, ok=%v err=%v", ok, err)
	}

	want := LastState{TrackURL: "https://example.com/a.mp3", PositionMs: 4200, IsPlaying: true, UpdatedAtMs: 12345}
	if err := st.SaveLastState(ctx, want); err != nil {
		t.Fatalf("save last state: %v", err)
	}

	got, ok, err := st.LoadLastState(ctx)
	if err != nil || !ok {
		t.Fatalf("expected last state, ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
