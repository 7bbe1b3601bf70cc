package cmdline

import "testing"

func TestParseRecognizesBootDebugVariants(t *testing.T) {
	cases := map[string]bool{
		"boot.debug=on":    true,
		"boot.debug=1":     true,
		"boot.debug=true":  true,
		"boot.debug=off":   false,
		"boot.debug=0":     false,
		"boot.debug=false": false,
	}
	for tok, want := range cases {
		if got := Parse(tok).Debug; got != want {
			t.Errorf("Parse(%q).Debug = %v, want %v", tok, got, want)
		}
	}
}

func TestParseVideoXeDefersVideo(t *testing.T) {
	if !Parse("video=xe").VideoDeferred {
		t.Fatal("video=xe did not set VideoDeferred")
	}
	if Parse("video=vga").VideoDeferred {
		t.Fatal("video=vga incorrectly set VideoDeferred")
	}
}

func TestParseTestHarnessSelectors(t *testing.T) {
	cfg := Parse("suite=0x3 tests.verbosity=2 tests.timeout_ms=5000 tests.shutdown=on")
	if cfg.TestSuiteMask != 3 {
		t.Fatalf("TestSuiteMask = %d, want 3", cfg.TestSuiteMask)
	}
	if cfg.TestVerbosity != 2 {
		t.Fatalf("TestVerbosity = %d, want 2", cfg.TestVerbosity)
	}
	if cfg.TestTimeoutMs != 5000 {
		t.Fatalf("TestTimeoutMs = %d, want 5000", cfg.TestTimeoutMs)
	}
	if !cfg.TestShutdown {
		t.Fatal("TestShutdown = false, want true")
	}
}

func TestParseMultipleTokensSpaceSeparated(t *testing.T) {
	cfg := Parse("boot.debug=on video=xe suite=7")
	if !cfg.Debug || !cfg.VideoDeferred || cfg.TestSuiteMask != 7 {
		t.Fatalf("cfg = %+v, want all three fields set", cfg)
	}
}

func TestParseUnknownKeyIsKeptInRawButIgnored(t *testing.T) {
	cfg := Parse("totally.unknown=xyz")
	if cfg.Raw["totally.unknown"] != "xyz" {
		t.Fatalf("Raw[totally.unknown] = %q, want %q", cfg.Raw["totally.unknown"], "xyz")
	}
	if cfg.Debug || cfg.VideoDeferred {
		t.Fatal("unknown key perturbed recognized fields")
	}
}

func TestParseEmptyStringYieldsZeroConfig(t *testing.T) {
	cfg := Parse("")
	if cfg.Debug || cfg.VideoDeferred || cfg.TestSuiteMask != 0 {
		t.Fatalf("cfg = %+v, want zero value", cfg)
	}
}
