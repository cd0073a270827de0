package preset

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for n := 0; n <= 10000; n++ {
		enc := Encode(n)
		dec, err := DecodeIndex(enc)
		if err != nil {
			t.Fatalf("DecodeIndex(%q) failed: %v", enc, err)
		}
		if dec != n {
			t.Fatalf("round trip %d -> %q -> %d", n, enc, dec)
		}
	}
}

func TestEncode(t *testing.T) {
	cases := []struct {
		n    int
		want string
	}{
		{0, "a"},
		{1, "b"},
		{51, "Z"},
		{52, "ba"},
		{103, "bZ"},
		{2704, "baa"},
	}
	for _, tc := range cases {
		if got := Encode(tc.n); got != tc.want {
			t.Errorf("Encode(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestDecodeIndex_Invalid(t *testing.T) {
	if _, err := DecodeIndex(""); err == nil {
		t.Error("expected error for empty token")
	}
	if _, err := DecodeIndex("a!b"); err == nil {
		t.Error("expected error for symbol outside alphabet")
	}
}

func TestBuildToken(t *testing.T) {
	token, err := BuildToken(0)
	if err != nil {
		t.Fatalf("BuildToken(0) failed: %v", err)
	}
	// inner is "fa", length 2, and the symbol at index 2 is 'c'
	if token != "Mcfa" {
		t.Errorf("BuildToken(0) = %q, want %q", token, "Mcfa")
	}

	if _, err := BuildToken(-1); err == nil {
		t.Error("expected error for negative map id")
	}
}

func TestInjectRoundTrip(t *testing.T) {
	for id := 0; id <= 10000; id++ {
		injected, err := Inject("xyMcfaXY", id)
		if err != nil {
			t.Fatalf("Inject(%d) failed: %v", id, err)
		}
		got, err := MapID(injected)
		if err != nil {
			t.Fatalf("MapID(%q) failed: %v", injected, err)
		}
		if got != id {
			t.Fatalf("inject round trip %d -> %q -> %d", id, injected, got)
		}
	}
}

func TestInject_FixedPoint(t *testing.T) {
	preset := "xyMcfaXY"
	id, err := MapID(preset)
	if err != nil {
		t.Fatalf("MapID failed: %v", err)
	}
	injected, err := Inject(preset, id)
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	if injected != preset {
		t.Errorf("injecting own id changed preset: %q -> %q", preset, injected)
	}
}

func TestInject_ChangesTokenLength(t *testing.T) {
	// id 0 yields a 2-symbol inner token, id 2704 a 4-symbol one
	short, err := Inject("AAMcfaBB", 2704)
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	if short != "AAMefbaaBB" {
		t.Errorf("Inject grew token wrong: %q", short)
	}
	back, err := Inject(short, 0)
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	if back != "AAMcfaBB" {
		t.Errorf("Inject shrank token wrong: %q", back)
	}
}

func TestInject_NoMarker(t *testing.T) {
	got, err := Inject("abcxyz", 42)
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	if got != "abcxyz" {
		t.Errorf("preset without marker changed: %q", got)
	}
}

func TestInject_Malformed(t *testing.T) {
	cases := []string{
		"xyM",    // truncated after marker
		"xyM!ab", // length symbol outside alphabet
		"xyMzab", // declared length exceeds preset
	}
	for _, preset := range cases {
		if _, err := Inject(preset, 1); err == nil {
			t.Errorf("Inject(%q) expected error", preset)
		}
	}
}

func TestMapID_Malformed(t *testing.T) {
	cases := []string{
		"abc",    // no marker
		"xyM",    // truncated
		"xyMcga", // inner token missing 'f' marker
	}
	for _, preset := range cases {
		if _, err := MapID(preset); err == nil {
			t.Errorf("MapID(%q) expected error", preset)
		}
	}
}
