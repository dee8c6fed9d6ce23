package stage

import (
	"errors"
	"testing"

	"apogee/internal/services"
)

func TestDecodeScriptValid(t *testing.T) {
	raw := `{"hook":"h","beats":[{"fact":"f1","analogy":"a1"},{"fact":"f2","analogy":"a2"},{"fact":"f3","analogy":"a3"}],"payoff":"p"}`
	script, err := DecodeScript("scripting", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if script.Hook != "h" || len(script.Beats) != 3 {
		t.Fatalf("unexpected script: %#v", script)
	}
}

func TestDecodeScriptCorrupt(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"not json":     "{broken",
		"wrong shape":  `{"hook":"h","beats":[{"fact":"f1"}],"payoff":"p"}`,
		"missing hook": `{"beats":[{"fact":"f1"},{"fact":"f2"},{"fact":"f3"}],"payoff":"p"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeScript("scripting", raw)
			if !errors.Is(err, services.ErrDataIntegrity) {
				t.Fatalf("expected data integrity error, got %v", err)
			}
		})
	}
}

func TestDecodeClaims(t *testing.T) {
	claims, err := DecodeClaims("rendering", `[{"claim_text":"c","confidence":0.8}]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(claims) != 1 || claims[0].Text != "c" {
		t.Fatalf("unexpected claims: %#v", claims)
	}

	if _, err := DecodeClaims("rendering", "[]"); !errors.Is(err, services.ErrDataIntegrity) {
		t.Fatalf("expected data integrity error for empty set, got %v", err)
	}
}

func TestDecodeStoryboardRequiresScenes(t *testing.T) {
	if _, err := DecodeStoryboard("publishing", `{"item_id":"x","scenes":[]}`); !errors.Is(err, services.ErrDataIntegrity) {
		t.Fatalf("expected data integrity error, got %v", err)
	}
}
