package message

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := KeywordSet{
		{Key: "CMD", Value: "EXPOSE"},
		{Key: "FILTER", Value: "V"},
		{Key: "DURATION", Value: "30.000"},
	}
	wire := Encode(in)
	out, err := Decode(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("want %d pairs, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("pair %d: want %+v got %+v", i, in[i], out[i])
		}
	}
}

func TestDecodeRejectsBadFraming(t *testing.T) {
	if _, err := Decode([]byte("\n*X/garbage")); err == nil {
		t.Error("want error for malformed body")
	}
}

func TestKeywordSetGetSet(t *testing.T) {
	var k KeywordSet
	k = k.Set("IMAGE", "foo.fits")
	k = k.Set("IMAGE", "bar.fits")
	v, ok := k.Get("IMAGE")
	if !ok || v != "bar.fits" {
		t.Errorf("want bar.fits, got %q ok=%v", v, ok)
	}
	if len(k) != 1 {
		t.Errorf("want Set to replace in place, got %d entries", len(k))
	}
}
