package platform

import "testing"

func TestParseRGB(t *testing.T) {
	tests := []struct {
		in      string
		want    RGB
		wantErr bool
	}{
		{in: "#000000", want: RGB{}},
		{in: "#ff8000", want: RGB{R: 0xff, G: 0x80}},
		{in: "1A2b3C", want: RGB{R: 0x1a, G: 0x2b, B: 0x3c}},
		{in: "", wantErr: true},
		{in: "#fff", wantErr: true},
		{in: "#gg0000", wantErr: true},
		{in: "##000000", wantErr: true},
		{in: "+fffff", wantErr: true},
		{in: "-fffff", wantErr: true},
		{in: "0x1234", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseRGB(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseRGB(%q) expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRGB(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRGB(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if back, _ := ParseRGB(got.Hex()); back != got {
			t.Errorf("Hex() round trip for %q gave %v", tt.in, back)
		}
	}
}

func TestRGBPixel(t *testing.T) {
	c := RGB{R: 0x12, G: 0x34, B: 0x56}
	if got := c.Pixel(); got != 0x123456 {
		t.Fatalf("Pixel() = %#x, want 0x123456", got)
	}
	if got := c.Hex(); got != "#123456" {
		t.Fatalf("Hex() = %q", got)
	}
}

func TestRectContains(t *testing.T) {
	r := Rect{X: 1920, Y: 0, Width: 2560, Height: 1440}
	tests := []struct {
		x, y int
		want bool
	}{
		{1920, 0, true},
		{4479, 1439, true},
		{4480, 0, false},
		{1919, 10, false},
		{2000, 1440, false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.x, tt.y); got != tt.want {
			t.Errorf("Contains(%d, %d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
	if got := r.String(); got != "2560x1440+1920+0" {
		t.Errorf("String() = %q", got)
	}
	if !(Rect{Width: 0, Height: 10}).Empty() {
		t.Error("zero-width rect should be empty")
	}
}

func TestIntersects(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 100, Height: 100}
	if !intersects(a, Rect{X: 50, Y: 50, Width: 100, Height: 100}) {
		t.Error("overlapping rects should intersect")
	}
	if intersects(a, Rect{X: 100, Y: 0, Width: 10, Height: 10}) {
		t.Error("touching rects should not intersect")
	}
}

func TestRectCovers(t *testing.T) {
	span := Rect{X: 0, Y: 0, Width: 4480, Height: 1440}
	tests := []struct {
		name  string
		inner Rect
		want  bool
	}{
		{"left screen", Rect{X: 0, Y: 0, Width: 1920, Height: 1080}, true},
		{"right screen", Rect{X: 1920, Y: 0, Width: 2560, Height: 1440}, true},
		{"itself", span, true},
		{"overhangs right", Rect{X: 4000, Y: 0, Width: 1920, Height: 1080}, false},
		{"below", Rect{X: 0, Y: 1440, Width: 1920, Height: 1080}, false},
	}
	for _, tt := range tests {
		if got := span.Covers(tt.inner); got != tt.want {
			t.Errorf("%s: Covers(%v) = %v, want %v", tt.name, tt.inner, got, tt.want)
		}
	}
}
