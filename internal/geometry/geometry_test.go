package geometry

import "testing"

func TestFits(t *testing.T) {
	desktop := Spec{Width: 3440, Height: 1440, Tolerance: 0.05}

	cases := []struct {
		name   string
		width  int
		height int
		spec   Spec
		want   bool
	}{
		{name: "exact match", width: 3440, height: 1440, spec: desktop, want: true},
		{name: "larger same ratio", width: 3840, height: 1600, spec: desktop, want: true},
		{name: "smaller same ratio", width: 1720, height: 720, spec: desktop, want: false},
		{name: "too narrow", width: 3000, height: 1440, spec: desktop, want: false},
		{name: "too short", width: 3440, height: 1200, spec: desktop, want: false},
		{name: "ratio off beyond tolerance", width: 3840, height: 2160, spec: desktop, want: false},
		{
			name:  "boundary deviation accepted",
			width: 1050, height: 1000,
			spec: Spec{Width: 1000, Height: 1000, Tolerance: 0.05},
			want: true,
		},
		{
			name:  "just past boundary rejected",
			width: 1051, height: 1000,
			spec: Spec{Width: 1000, Height: 1000, Tolerance: 0.05},
			want: false,
		},
		{
			// 3612/1440 deviates from 3440/1440 by exactly 172/3440 = 0.05;
			// dividing the ratios in float64 lands one ulp past the
			// tolerance and used to reject this.
			name:  "ultrawide boundary deviation accepted",
			width: 3612, height: 1440,
			spec: desktop,
			want: true,
		},
		{
			name:  "ultrawide just past boundary rejected",
			width: 3613, height: 1440,
			spec: desktop,
			want: false,
		},
		{
			name:  "zero tolerance requires exact ratio",
			width: 1920, height: 1080,
			spec: Spec{Width: 1280, Height: 720, Tolerance: 0},
			want: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Fits(tc.width, tc.height, tc.spec)
			if err != nil {
				t.Fatalf("Fits(%d, %d): %v", tc.width, tc.height, err)
			}
			if got != tc.want {
				t.Fatalf("Fits(%d, %d) = %v, want %v", tc.width, tc.height, got, tc.want)
			}
		})
	}
}

func TestFitsRejectsUndersizedRegardlessOfRatio(t *testing.T) {
	spec := Spec{Width: 2560, Height: 1440, Tolerance: 1 - 1e-9}
	ok, err := Fits(1920, 1080, spec)
	if err != nil {
		t.Fatalf("Fits: %v", err)
	}
	if ok {
		t.Fatalf("undersized image must be rejected even with maximal tolerance")
	}
}

func TestFitsDegenerateDimensions(t *testing.T) {
	spec := Spec{Width: 1920, Height: 1080, Tolerance: 0.05}

	if _, err := Fits(1920, 0, spec); err == nil {
		t.Fatalf("expected error for zero image height")
	}
	if _, err := Fits(0, 1080, spec); err == nil {
		t.Fatalf("expected error for zero image width")
	}
	if _, err := Fits(1920, 1080, Spec{Width: 1920, Height: 0, Tolerance: 0.05}); err == nil {
		t.Fatalf("expected error for zero target height")
	}
}
