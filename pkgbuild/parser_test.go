package pkgbuild

import (
	"strings"
	"testing"

	"github.com/AcaciaLinux/libpkgbuild/errdefs"
)

const sampleRecipe = `
name = foo
version = 1.2
real_version = 3
description = An example package
source = https://example.org/$PKG_NAME-$PKG_VERSION.tar.xz
build_dependencies = [gcc][make]
strip = 1

prepare = {
	./configure --prefix=/usr
}

build = {
	make
	make docs
}

package = {
	make DESTDIR=$PKG_INSTALL_DIR install
}
`

func TestParseSampleRecipe(t *testing.T) {
	pb, err := Parse(strings.NewReader(sampleRecipe))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if pb.Name != "foo" {
		t.Errorf("Name = %q, want %q", pb.Name, "foo")
	}
	if pb.Version != "1.2" {
		t.Errorf("Version = %q, want %q", pb.Version, "1.2")
	}
	if pb.RealVersion != 3 {
		t.Errorf("RealVersion = %d, want 3", pb.RealVersion)
	}
	if pb.Description != "An example package" {
		t.Errorf("Description = %q", pb.Description)
	}
	if pb.Source != "https://example.org/$PKG_NAME-$PKG_VERSION.tar.xz" {
		t.Errorf("Source = %q", pb.Source)
	}
	if len(pb.BuildDependencies) != 2 || pb.BuildDependencies[0] != "gcc" || pb.BuildDependencies[1] != "make" {
		t.Errorf("BuildDependencies = %v, want [gcc make]", pb.BuildDependencies)
	}
	if !pb.Strip {
		t.Error("Strip = false, want true")
	}

	if len(pb.Prepare) != 1 || pb.Prepare[0] != "./configure --prefix=/usr" {
		t.Errorf("Prepare = %v", pb.Prepare)
	}
	if len(pb.Build) != 2 || pb.Build[0] != "make" || pb.Build[1] != "make docs" {
		t.Errorf("Build = %v", pb.Build)
	}
	if len(pb.Package) != 1 {
		t.Errorf("Package = %v", pb.Package)
	}
	if pb.Check != nil {
		t.Errorf("Check = %v, want nil (absent phase)", pb.Check)
	}
}

func TestParseMissingRealVersion(t *testing.T) {
	input := "name = foo\nversion = 1.0\n"

	_, err := Parse(strings.NewReader(input))
	if err == nil {
		t.Fatal("Parse succeeded, want error")
	}
	if errdefs.KindOf(err) != errdefs.KindParse {
		t.Errorf("KindOf = %v, want KindParse", errdefs.KindOf(err))
	}
	if errdefs.DetailOf(err) != errdefs.DetailNotFound {
		t.Errorf("DetailOf = %q, want %q", errdefs.DetailOf(err), errdefs.DetailNotFound)
	}
}

func TestParseInvalidRealVersion(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"not a number", "abc"},
		{"negative", "-1"},
		{"too large", "4294967296"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := "name = foo\nversion = 1.0\nreal_version = " + tt.value + "\n"
			_, err := Parse(strings.NewReader(input))
			if err == nil {
				t.Fatal("Parse succeeded, want error")
			}
			if errdefs.DetailOf(err) != errdefs.DetailInvalidData {
				t.Errorf("DetailOf = %q, want %q", errdefs.DetailOf(err), errdefs.DetailInvalidData)
			}
		})
	}
}

func TestParseArrayLine(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		want  []string
		isErr bool
	}{
		{"two items", "[a][b]", []string{"a", "b"}, false},
		{"single item", "[one item]", []string{"one item"}, false},
		{"empty array", "[]", []string{""}, false},
		{"dangling item", "[a][b", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArray(tt.line)
			if tt.isErr {
				if err == nil {
					t.Fatal("parseArray succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseArray failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseArray = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("item %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseMultilineNested(t *testing.T) {
	input := `name = foo
version = 1.0
real_version = 1
build = {
	if true; then { echo nested; }
	make
}
`
	pb, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(pb.Build) != 2 {
		t.Fatalf("Build = %v, want 2 lines", pb.Build)
	}
	if pb.Build[0] != "if true; then { echo nested; }" {
		t.Errorf("Build[0] = %q", pb.Build[0])
	}
}

func TestParseUnterminatedBlock(t *testing.T) {
	input := "name = foo\nversion = 1.0\nreal_version = 1\nbuild = {\n\tmake\n"

	_, err := Parse(strings.NewReader(input))
	if err == nil {
		t.Fatal("Parse succeeded, want error")
	}
	if errdefs.DetailOf(err) != errdefs.DetailUnexpectedEOF {
		t.Errorf("DetailOf = %q, want %q", errdefs.DetailOf(err), errdefs.DetailUnexpectedEOF)
	}
}

func TestParseSkipsBlankValues(t *testing.T) {
	input := "name = foo\nversion = 1.0\nreal_version = 1\ndescription =\n"

	pb, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if pb.Description != "" {
		t.Errorf("Description = %q, want empty", pb.Description)
	}
}

func TestParseStripCoercion(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"1", true},
		{"0", false},
		{"true", false},
	}

	for _, tt := range tests {
		input := "name = foo\nversion = 1.0\nreal_version = 1\nstrip = " + tt.value + "\n"
		pb, err := Parse(strings.NewReader(input))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if pb.Strip != tt.want {
			t.Errorf("strip = %q: Strip = %v, want %v", tt.value, pb.Strip, tt.want)
		}
	}
}

func TestPhaseScript(t *testing.T) {
	pb := New("foo", "1.0", 1)
	pb.Build = []string{"make"}

	if got := pb.PhaseScript(PhaseBuild); len(got) != 1 || got[0] != "make" {
		t.Errorf("PhaseScript(build) = %v", got)
	}
	if got := pb.PhaseScript(PhaseCheck); got != nil {
		t.Errorf("PhaseScript(check) = %v, want nil", got)
	}
}
