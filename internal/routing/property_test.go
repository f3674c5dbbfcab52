package routing

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/storylens/storylens/internal/backend"
)

// TestProperty_ShadowNeverAltersPrimary drives the shadow executor with
// arbitrary shadow outcomes and checks that the returned primary fields are
// byte-for-byte what the primary tier produced.
func TestProperty_ShadowNeverAltersPrimary(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("primary output is independent of the shadow outcome", prop.ForAll(
		func(primaryText, shadowText string, shadowFails bool) bool {
			script := map[string]scriptedBehavior{
				"relay-flash": {text: primaryText, confidence: 0.9},
				"relay-pro":   {text: shadowText, confidence: 0.5},
			}
			if shadowFails {
				script["relay-pro"] = scriptedBehavior{
					err: &backend.Error{Kind: backend.KindServerError, Status: 500, Model: "relay-pro"},
				}
			}
			exec := NewExecutor(newFakeBackend(script))

			res, err := exec.CallWithShadow(context.Background(), "relay-flash", "relay-pro",
				backend.CallRequest{Prompt: "p", Timeout: time.Second})
			if err != nil {
				return false
			}
			if res.Text != primaryText || res.Model != "relay-flash" || res.FallbackUsed {
				return false
			}
			// A shadow result is attached exactly when the shadow succeeded.
			return (res.Shadow != nil) == !shadowFails
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// TestProperty_WordErrorRateBounds checks the word error rate over arbitrary
// word sequences: identical inputs score zero and the rate is never negative.
func TestProperty_WordErrorRateBounds(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("identical texts score zero", prop.ForAll(
		func(text string) bool {
			return wordErrorRate(text, text) == 0
		},
		gen.AnyString(),
	))

	properties.Property("rate is never negative", prop.ForAll(
		func(a, b string) bool {
			return wordErrorRate(a, b) >= 0
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
