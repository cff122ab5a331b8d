package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestValidateUserID(t *testing.T) {
	tests := []struct {
		name    string
		input   UserID
		wantErr error
	}{
		{"valid simple", "alice", nil},
		{"valid uuid", "0b9f8c1e-4c1a-4a57-9a9b-0f3c2d1e5a77", nil},
		{"valid max length", UserID(strings.Repeat("a", MaxUserIDLength)), nil},
		{"empty", "", ErrUserIDEmpty},
		{"too long", UserID(strings.Repeat("a", MaxUserIDLength+1)), ErrUserIDTooLong},
		{"contains space", "has space", ErrUserIDInvalidChars},
		{"tab character", "user\tname", ErrUserIDInvalidChars},
		{"newline", "user\nname", ErrUserIDInvalidChars},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUserID(tt.input)
			if err != tt.wantErr {
				t.Errorf("ValidateUserID(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestParseDifficulties(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    DifficultySet
		wantErr bool
	}{
		{"single", []string{"easy"}, NewDifficultySet(DifficultyEasy), false},
		{"mixed case", []string{"Medium", " HARD "}, NewDifficultySet(DifficultyMedium, DifficultyHard), false},
		{"duplicates collapse", []string{"easy", "easy"}, NewDifficultySet(DifficultyEasy), false},
		{"all", []string{"hard", "medium", "easy"}, NewDifficultySet(DifficultyEasy, DifficultyMedium, DifficultyHard), false},
		{"empty", nil, 0, true},
		{"unknown", []string{"easy", "insane"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDifficulties(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCriteria) {
					t.Fatalf("ParseDifficulties(%v): want ErrInvalidCriteria, got %v", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDifficulties(%v): unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseDifficulties(%v) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestDifficultySetAgreed(t *testing.T) {
	e, m, h := DifficultyEasy, DifficultyMedium, DifficultyHard
	tests := []struct {
		name   string
		a, b   DifficultySet
		want   Difficulty
		wantOK bool
	}{
		{"same single", NewDifficultySet(e), NewDifficultySet(e), e, true},
		{"subset", NewDifficultySet(e), NewDifficultySet(e, m), e, true},
		{"hard before medium", NewDifficultySet(m, h), NewDifficultySet(e, m, h), h, true},
		{"only medium shared", NewDifficultySet(e, m), NewDifficultySet(m, h), m, true},
		{"disjoint", NewDifficultySet(e), NewDifficultySet(h), 0, false},
		{"empty", 0, NewDifficultySet(e), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.a.Agreed(tt.b)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("%s.Agreed(%s) = (%s, %v), want (%s, %v)", tt.a, tt.b, got, ok, tt.want, tt.wantOK)
			}
			if back, _ := tt.b.Agreed(tt.a); back != got {
				t.Fatalf("Agreed is not symmetric: %s vs %s", got, back)
			}
			if tt.a.Compatible(tt.b) != tt.wantOK {
				t.Fatalf("Compatible(%s, %s) = %v, want %v", tt.a, tt.b, !tt.wantOK, tt.wantOK)
			}
		})
	}
}

func TestDifficultySetJSON(t *testing.T) {
	s := NewDifficultySet(DifficultyMedium, DifficultyEasy)
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `["easy","medium"]` {
		t.Fatalf("Marshal: got %s", data)
	}

	var empty DifficultySet
	if err := json.Unmarshal([]byte(`[]`), &empty); !errors.Is(err, ErrInvalidCriteria) {
		t.Fatalf("Unmarshal empty list: want ErrInvalidCriteria, got %v", err)
	}
	if err := json.Unmarshal([]byte(`"easy"`), &empty); !errors.Is(err, ErrInvalidCriteria) {
		t.Fatalf("Unmarshal non-list: want ErrInvalidCriteria, got %v", err)
	}
}

func TestQueueEntryBefore(t *testing.T) {
	now := time.Unix(1700000000, 0)
	a := QueueEntry{UserID: "a", EnqueuedAt: now, Seq: 1}
	b := QueueEntry{UserID: "b", EnqueuedAt: now, Seq: 2}
	c := QueueEntry{UserID: "c", EnqueuedAt: now.Add(-time.Second), Seq: 3}

	if !a.Before(b) || b.Before(a) {
		t.Fatalf("Before: equal timestamps must order by Seq")
	}
	if !c.Before(a) {
		t.Fatalf("Before: earlier timestamp must win over lower Seq")
	}
}

func TestRoomPeer(t *testing.T) {
	r := Room{ID: "r1", MemberA: "a", MemberB: "b"}
	if p, ok := r.Peer("a"); !ok || p != "b" {
		t.Fatalf("Peer(a) = %q, %v", p, ok)
	}
	if p, ok := r.Peer("b"); !ok || p != "a" {
		t.Fatalf("Peer(b) = %q, %v", p, ok)
	}
	if _, ok := r.Peer("c"); ok {
		t.Fatalf("Peer(c): expected not a member")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"criteria", ErrInvalidCriteria, KindValidation},
		{"wrapped criteria", fmt.Errorf("join: %w", ErrInvalidCriteria), KindValidation},
		{"user id", ErrUserIDEmpty, KindValidation},
		{"already queued", ErrAlreadyQueued, KindStateConflict},
		{"not queued", ErrNotQueued, KindStateConflict},
		{"already in room", ErrAlreadyInRoom, KindStateConflict},
		{"room exists", &RoomExistsError{RoomID: "r1"}, KindRoomExists},
		{"not found", ErrNotFound, KindNotFound},
		{"other", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestRoomExistsIsAlreadyInRoom(t *testing.T) {
	var err error = &RoomExistsError{RoomID: "r1"}
	if !errors.Is(err, ErrAlreadyInRoom) {
		t.Fatalf("errors.Is(RoomExistsError, ErrAlreadyInRoom) = false")
	}
	if !strings.Contains(err.Error(), "r1") {
		t.Fatalf("Error() should mention the room id, got %q", err.Error())
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		input string
		want  Role
	}{
		{"admin", RoleAdmin},
		{"user", RoleUser},
		{"", RoleUser},
		{"moderator", RoleUser},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseRole(tt.input); got != tt.want {
				t.Errorf("ParseRole(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestRoomStateText(t *testing.T) {
	for _, s := range []RoomState{RoomActive, RoomClosed} {
		b, err := s.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", s, err)
		}
		var got RoomState
		if err := got.UnmarshalText(b); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", b, err)
		}
		if got != s {
			t.Fatalf("UnmarshalText(%q) = %v, want %v", b, got, s)
		}
	}
	var s RoomState
	if err := s.UnmarshalText([]byte("paused")); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("UnmarshalText(paused): got %v, want ErrInvalidRequest", err)
	}
}
