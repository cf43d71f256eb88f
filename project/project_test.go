package project_test

import (
	"errors"
	"math"
	"testing"

	"github.com/firmadoc/pdfmerge/geom"
	"github.com/firmadoc/pdfmerge/placement"
	"github.com/firmadoc/pdfmerge/project"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func letterPage() geom.PageGeometry {
	return geom.PageGeometry{Width: 612, Height: 792}
}

func place(relX, relY, relW, relH float64) placement.Placement {
	return placement.Placement{
		ID:        "p1",
		Page:      1,
		RelX:      relX,
		RelY:      relY,
		RelWidth:  relW,
		RelHeight: relH,
	}
}

func TestProjectLetterPage(t *testing.T) {
	b, err := project.Project(place(0.15, 0.15, 0.49, 0.19), letterPage())
	if err != nil {
		t.Fatalf("Project() error: %v", err)
	}

	if !almostEqual(b.X, 91.8) {
		t.Errorf("X = %v, want 91.8", b.X)
	}
	if !almostEqual(b.Y, 522.72) {
		t.Errorf("Y = %v, want 522.72", b.Y)
	}
	if !almostEqual(b.Width, 299.88) {
		t.Errorf("Width = %v, want 299.88", b.Width)
	}
	if !almostEqual(b.Height, 150.48) {
		t.Errorf("Height = %v, want 150.48", b.Height)
	}
}

func TestProjectTopLeftOrigin(t *testing.T) {
	// A mark at the very top of the page lands at the top in PDF space.
	b, err := project.Project(place(0, 0, 0.5, 0.1), letterPage())
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(b.Y+b.Height, 792) {
		t.Errorf("top edge at %v, want 792", b.Y+b.Height)
	}

	// A mark at the very bottom reaches Y = 0.
	b, err = project.Project(place(0, 0.9, 0.5, 0.1), letterPage())
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(b.Y, 0) {
		t.Errorf("Y = %v, want 0", b.Y)
	}
}

func TestProjectMissingCoordinates(t *testing.T) {
	p := place(0.1, 0.1, 0.2, 0.1)
	p.RelY = math.NaN()

	_, err := project.Project(p, letterPage())
	if !errors.Is(err, project.ErrMissingCoordinateData) {
		t.Errorf("got %v, want ErrMissingCoordinateData", err)
	}

	p = place(0.1, math.Inf(1), 0.2, 0.1)
	if _, err := project.Project(p, letterPage()); !errors.Is(err, project.ErrMissingCoordinateData) {
		t.Errorf("got %v, want ErrMissingCoordinateData for infinite input", err)
	}
}

func TestProjectClampRightEdge(t *testing.T) {
	b, err := project.Project(place(0.9, 0.1, 0.3, 0.1), letterPage())
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(b.X+b.Width, 612) {
		t.Errorf("right edge at %v, want exactly 612", b.X+b.Width)
	}
}

func TestProjectClampBottomKeepsFloorHeight(t *testing.T) {
	// A box whose bottom edge falls below the page is lifted to Y=0 and
	// kept at least MinBoxHeight tall.
	b, err := project.Project(place(0.1, 0.99, 0.3, 0.1), letterPage())
	if err != nil {
		t.Fatal(err)
	}
	if b.Y != 0 {
		t.Errorf("Y = %v, want 0", b.Y)
	}
	if b.Height < project.MinBoxHeight {
		t.Errorf("Height = %v, want at least %v", b.Height, project.MinBoxHeight)
	}
}

func TestProjectClampNegativeX(t *testing.T) {
	b, err := project.Project(place(-0.1, 0.1, 0.3, 0.1), letterPage())
	if err != nil {
		t.Fatal(err)
	}
	if b.X != 0 {
		t.Errorf("X = %v, want 0", b.X)
	}
	// The overhang is trimmed off the width.
	if !almostEqual(b.Width, 0.2*612) {
		t.Errorf("Width = %v, want %v", b.Width, 0.2*612)
	}
}

func TestProjectContainment(t *testing.T) {
	pages := []geom.PageGeometry{
		{Width: 612, Height: 792},
		{Width: 842, Height: 595},
		{Width: 100, Height: 100},
	}
	coords := [][4]float64{
		{0, 0, 1, 1},
		{0.5, 0.5, 1, 1},
		{-0.5, -0.5, 2, 2},
		{0.97, 0.97, 0.1, 0.1},
	}
	for _, g := range pages {
		for _, c := range coords {
			b, err := project.Project(place(c[0], c[1], c[2], c[3]), g)
			if err != nil {
				t.Fatalf("Project(%v, %v): %v", c, g, err)
			}
			if b.X < 0 || b.Y < 0 || b.X+b.Width > g.Width+epsilon || b.Y+b.Height > g.Height+epsilon {
				t.Errorf("box %+v escapes page %gx%g for coords %v", b, g.Width, g.Height, c)
			}
		}
	}
}

func TestBoxAspectRatio(t *testing.T) {
	b := project.Box{Width: 300, Height: 150}
	if b.AspectRatio() != 2 {
		t.Errorf("AspectRatio = %v, want 2", b.AspectRatio())
	}
	if (project.Box{}).AspectRatio() != 0 {
		t.Error("zero box should have zero aspect ratio")
	}
}
