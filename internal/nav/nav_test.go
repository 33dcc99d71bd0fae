package nav

import "testing"

func TestReturnPath_RejectsNonRootRelative(t *testing.T) {
	tests := []struct {
		name string
		from string
	}{
		{"absent", ""},
		{"protocol relative", "//evil.com"},
		{"absolute url", "http://evil.com/x"},
		{"https url", "https://evil.com"},
		{"bare word", "orders"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReturnPath(tt.from, "/app"); got != "/app" {
				t.Errorf("ReturnPath(%q) = %q, want fallback /app", tt.from, got)
			}
		})
	}
}

func TestReturnPath_AcceptsRootRelative(t *testing.T) {
	if got := ReturnPath("/orders/5", "/app"); got != "/orders/5" {
		t.Fatalf("ReturnPath(/orders/5) = %q, want /orders/5", got)
	}
	if got := ReturnPath("/orders?status=draft", "/app"); got != "/orders?status=draft" {
		t.Fatalf("query content must pass through unchanged, got %q", got)
	}
}

func TestAnnotateHref_AppendsCurrentPath(t *testing.T) {
	got := AnnotateHref("/orders/5", "/orders")
	if got != "/orders/5?from=%2Forders" {
		t.Fatalf("AnnotateHref = %q, want /orders/5?from=%%2Forders", got)
	}
}

func TestAnnotateHref_PropagatesOrigin(t *testing.T) {
	// Reached /orders from /app; links onward should still return to /app.
	got := AnnotateHref("/orders/5", "/orders?from=%2Fapp")
	if got != "/orders/5?from=%2Fapp" {
		t.Fatalf("AnnotateHref = %q, want /orders/5?from=%%2Fapp", got)
	}
}

func TestAnnotateHref_ExplicitFromWins(t *testing.T) {
	got := AnnotateHref("/orders/5?from=%2Fcustom", "/orders")
	if got != "/orders/5?from=%2Fcustom" {
		t.Fatalf("explicit from must be left untouched, got %q", got)
	}
}

func TestAnnotateHref_UsesAmpersandWithExistingQuery(t *testing.T) {
	got := AnnotateHref("/orders/5?tab=items", "/orders")
	if got != "/orders/5?tab=items&from=%2Forders" {
		t.Fatalf("AnnotateHref = %q", got)
	}
}

func TestAnnotateHref_CarriesCurrentQuery(t *testing.T) {
	got := AnnotateHref("/orders/5", "/orders?status=draft")
	if got != "/orders/5?from="+"%2Forders%3Fstatus%3Ddraft" {
		t.Fatalf("AnnotateHref = %q", got)
	}
}

func TestAnnotateHref_InvalidOriginFallsBackToCurrentPage(t *testing.T) {
	// A forged from on the current URL must not be propagated.
	got := AnnotateHref("/orders/5", "/orders?from=%2F%2Fevil.com")
	if got != "/orders/5?from=%2Forders" {
		t.Fatalf("AnnotateHref = %q, want current page as return value", got)
	}
}
