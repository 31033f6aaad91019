package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/trackify/internal/services"
)

type stubExchanger struct {
	err error
}

func (s *stubExchanger) Exchange(ctx context.Context, code string) (*services.TokenPair, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.TokenPair{AccessToken: "access-" + code, RefreshToken: "refresh"}, nil
}

func TestOAuthHandler(t *testing.T) {
	t.Run("Delivers The Token Pair", func(t *testing.T) {
		handler := NewOAuthHandler(&stubExchanger{}, "expected-state")
		srv := httptest.NewServer(handler)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/callback?state=expected-state&code=abc")
		if err != nil {
			t.Fatalf("callback request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		result := <-handler.Result()
		if result.Error() != nil {
			t.Fatalf("expected no error, got %v", result.Error())
		}
		if result.Pair.AccessToken != "access-abc" || result.Pair.RefreshToken != "refresh" {
			t.Errorf("unexpected pair: %+v", result.Pair)
		}
	})

	t.Run("Rejects A Forged State", func(t *testing.T) {
		handler := NewOAuthHandler(&stubExchanger{}, "expected-state")
		srv := httptest.NewServer(handler)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/callback?state=forged&code=abc")
		if err != nil {
			t.Fatalf("callback request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}

		if result := <-handler.Result(); result.Error() == nil {
			t.Error("expected an error result")
		}
	})

	t.Run("Surfaces A Denied Consent", func(t *testing.T) {
		handler := NewOAuthHandler(&stubExchanger{}, "expected-state")
		srv := httptest.NewServer(handler)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/callback?state=expected-state&error=access_denied&error_description=nope")
		if err != nil {
			t.Fatalf("callback request failed: %v", err)
		}
		defer resp.Body.Close()

		result := <-handler.Result()
		if result.Error() == nil {
			t.Fatal("expected an error result")
		}
	})

	t.Run("Second Callback Rejected", func(t *testing.T) {
		handler := NewOAuthHandler(&stubExchanger{}, "expected-state")
		srv := httptest.NewServer(handler)
		defer srv.Close()

		for i, want := range []int{http.StatusOK, http.StatusBadRequest} {
			resp, err := http.Get(srv.URL + fmt.Sprintf("/callback?state=expected-state&code=abc-%d", i))
			if err != nil {
				t.Fatalf("callback request failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != want {
				t.Errorf("request %d: expected %d, got %d", i, want, resp.StatusCode)
			}
		}
	})
}
