package session

import (
	"context"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/desertthunder/cardquiz/internal/models"
)

func TestStore(t *testing.T) {
	t.Run("Save notifies subscribers", func(t *testing.T) {
		store := NewStore()
		var got []*Session
		unsubscribe := store.OnChange(func(s *Session) { got = append(got, s) })

		store.Save(&Session{Token: "abc", User: models.User{ID: "u1"}})
		store.Clear()
		unsubscribe()
		store.Save(&Session{Token: "ignored"})

		if len(got) != 2 {
			t.Fatalf("expected 2 notifications, got %d", len(got))
		}
		if got[0] == nil || got[0].Token != "abc" {
			t.Errorf("first notification should carry the session, got %+v", got[0])
		}
		if got[1] != nil {
			t.Errorf("clear should notify nil, got %+v", got[1])
		}
	})

	t.Run("IsValid respects expiry", func(t *testing.T) {
		now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		store := &Store{now: func() time.Time { return now }}

		if store.IsValid() {
			t.Error("empty store should not be valid")
		}

		store.Save(&Session{Token: "t", ExpiresAt: now.Add(time.Minute)})
		if !store.IsValid() {
			t.Error("unexpired session should be valid")
		}

		store.Save(&Session{Token: "t", ExpiresAt: now.Add(-time.Minute)})
		if store.IsValid() {
			t.Error("expired session should not be valid")
		}

		store.Save(&Session{Token: "t"})
		if !store.IsValid() {
			t.Error("session without expiry should be valid")
		}
	})

	t.Run("Current returns a copy", func(t *testing.T) {
		store := NewStore()
		store.Save(&Session{Token: "abc"})
		cur := store.Current()
		cur.Token = "changed"
		if store.Token() != "abc" {
			t.Error("mutating Current() must not change the store")
		}
	})
}

func TestTokenExpiry(t *testing.T) {
	ja := jwtauth.New("HS256", []byte("secret"), nil)
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	_, signed, err := ja.Encode(map[string]interface{}{
		jwt.SubjectKey:    "u1",
		jwt.ExpirationKey: exp,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if got := TokenExpiry(signed); !got.Equal(exp) {
		t.Errorf("TokenExpiry() = %v, want %v", got, exp)
	}
	if got := TokenExpiry("not-a-jwt"); !got.IsZero() {
		t.Errorf("expected zero time for garbage token, got %v", got)
	}
}

func TestContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("empty context should carry no session")
	}
	ctx := NewContext(context.Background(), &Session{Token: "x"})
	sess, ok := FromContext(ctx)
	if !ok || sess.Token != "x" {
		t.Errorf("expected session from context, got %+v %v", sess, ok)
	}
}
