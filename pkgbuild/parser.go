package pkgbuild

import (
	"io"
	"strconv"
	"strings"

	"github.com/AcaciaLinux/libpkgbuild/errdefs"
)

// parseResult is either a literal string or a sequence of strings.
type parseResult struct {
	str   string
	vec   []string
	isVec bool
}

// Parse reads a recipe from input and yields the PackageBuild model.
//
// The grammar is line oriented: `key = value` with trimmed key and value,
// blank values skipped. A value starting with `[` is an array of `[item]`
// groups on that line. A value containing `{` opens a multiline block that
// runs until braces balance; each non-empty trimmed interior line becomes
// one element. Anything else is a literal string.
func Parse(input io.Reader) (*PackageBuild, error) {
	contents, err := io.ReadAll(input)
	if err != nil {
		return nil, errdefs.Prepend("reading recipe", err)
	}

	entries, err := parseLines(strings.Split(string(contents), "\n"))
	if err != nil {
		return nil, err
	}

	realVersionStr, err := entries.getStr("real_version")
	if err != nil {
		return nil, err
	}
	realVersion, err := strconv.ParseUint(realVersionStr, 10, 32)
	if err != nil {
		return nil, errdefs.Newf(errdefs.KindParse,
			"parsing real_version failed: %v", err).WithDetail(errdefs.DetailInvalidData)
	}

	pb := &PackageBuild{RealVersion: uint32(realVersion)}

	if pb.Name, err = entries.getStr("name"); err != nil {
		return nil, err
	}
	if pb.Version, err = entries.getStr("version"); err != nil {
		return nil, err
	}

	if pb.Maintainer, err = entries.getStrOpt("maintainer"); err != nil {
		return nil, err
	}
	if pb.MaintainerEmail, err = entries.getStrOpt("maintainer_email"); err != nil {
		return nil, err
	}
	if pb.Description, err = entries.getStrOpt("description"); err != nil {
		return nil, err
	}
	if pb.Provides, err = entries.getVecOpt("provides"); err != nil {
		return nil, err
	}
	if pb.Source, err = entries.getStrOpt("source"); err != nil {
		return nil, err
	}
	if pb.ExtraSources, err = entries.getVecOpt("extra_sources"); err != nil {
		return nil, err
	}
	if pb.ExtraDependencies, err = entries.getVecOpt("extra_dependencies"); err != nil {
		return nil, err
	}
	if pb.OptionalDependencies, err = entries.getVecOpt("optional_dependencies"); err != nil {
		return nil, err
	}
	if pb.BuildDependencies, err = entries.getVecOpt("build_dependencies"); err != nil {
		return nil, err
	}
	if pb.CrossDependencies, err = entries.getVecOpt("cross_dependencies"); err != nil {
		return nil, err
	}
	if pb.Preinstall, err = entries.getStrOpt("preinstall"); err != nil {
		return nil, err
	}
	if pb.Postinstall, err = entries.getStrOpt("postinstall"); err != nil {
		return nil, err
	}

	strip, err := entries.getStrOpt("strip")
	if err != nil {
		return nil, err
	}
	pb.Strip = strip == "1"

	if pb.Prepare, err = entries.getVecOpt("prepare"); err != nil {
		return nil, err
	}
	if pb.Build, err = entries.getVecOpt("build"); err != nil {
		return nil, err
	}
	if pb.Check, err = entries.getVecOpt("check"); err != nil {
		return nil, err
	}
	if pb.Package, err = entries.getVecOpt("package"); err != nil {
		return nil, err
	}

	return pb, nil
}

type entryMap map[string]parseResult

// parseLines walks the recipe line by line, dispatching on the shape of
// each value.
func parseLines(lines []string) (entryMap, error) {
	entries := make(entryMap)

	for i := 0; i < len(lines); i++ {
		key, data, found := strings.Cut(lines[i], "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		data = strings.TrimSpace(data)

		if data == "" {
			continue
		}

		switch {
		case strings.HasPrefix(data, "["):
			items, err := parseArray(data)
			if err != nil {
				return nil, err
			}
			if len(items) > 0 {
				entries[key] = parseResult{vec: items, isVec: true}
			}

		case !strings.Contains(data, "{"):
			entries[key] = parseResult{str: data}

		default:
			items, rest, err := parseMultiline(lines[i+1:], data)
			if err != nil {
				return nil, err
			}
			i += rest
			if len(items) > 0 {
				entries[key] = parseResult{vec: items, isVec: true}
			}
		}
	}

	return entries, nil
}

// parseArray reads zero or more `[item]` groups from a single line.
func parseArray(line string) ([]string, error) {
	var res []string
	var buf strings.Builder

	for _, ch := range line {
		switch ch {
		case '[':
			buf.Reset()
		case ']':
			res = append(res, buf.String())
			buf.Reset()
		default:
			buf.WriteRune(ch)
		}
	}

	if buf.Len() != 0 {
		return nil, errdefs.New(errdefs.KindParse,
			"while parsing array").WithDetail(errdefs.DetailUnexpectedEOF)
	}
	return res, nil
}

// parseMultiline collects the lines of a `{ ... }` block. It starts on
// startLine (everything after the `=`), consumes lines from rest until the
// braces balance, and reports how many of them it used.
func parseMultiline(rest []string, startLine string) ([]string, int, error) {
	if !strings.Contains(startLine, "{") {
		return nil, 0, errdefs.New(errdefs.KindParse,
			"tried to parse multiline, but no opening brace in start line").
			WithDetail(errdefs.DetailInvalidData)
	}

	var lines []string
	ob, cb := 1, 0
	line := removeFirst(startLine, '{')
	consumed := 0

	for {
		line = strings.TrimSpace(line)
		ob += strings.Count(line, "{")
		cb += strings.Count(line, "}")

		if ob == cb {
			line = removeLast(line, '}')
			if line != "" {
				lines = append(lines, line)
			}
			return lines, consumed, nil
		}

		if line != "" {
			lines = append(lines, line)
		}

		if consumed >= len(rest) {
			return nil, consumed, errdefs.New(errdefs.KindParse,
				"in instruction block").WithDetail(errdefs.DetailUnexpectedEOF)
		}
		line = rest[consumed]
		consumed++
	}
}

// removeFirst drops the first occurrence of ch from s.
func removeFirst(s string, ch byte) string {
	if i := strings.IndexByte(s, ch); i >= 0 {
		return s[:i] + s[i+1:]
	}
	return s
}

// removeLast drops the last occurrence of ch from s.
func removeLast(s string, ch byte) string {
	if i := strings.LastIndexByte(s, ch); i >= 0 {
		return s[:i] + s[i+1:]
	}
	return s
}

// getStr returns the string value for key, failing when the key is absent
// or holds an array.
func (m entryMap) getStr(key string) (string, error) {
	res, ok := m[key]
	if !ok {
		return "", errdefs.Newf(errdefs.KindParse,
			"missing expected key %q", key).WithDetail(errdefs.DetailNotFound)
	}
	if res.isVec {
		return "", errdefs.Newf(errdefs.KindParse,
			"expected a string for key %q, found an array", key).
			WithDetail(errdefs.DetailInvalidData)
	}
	return res.str, nil
}

// getStrOpt is getStr for optional keys: an absent key yields "".
func (m entryMap) getStrOpt(key string) (string, error) {
	res, ok := m[key]
	if !ok {
		return "", nil
	}
	if res.isVec {
		return "", errdefs.Newf(errdefs.KindParse,
			"expected a string for key %q, found an array", key).
			WithDetail(errdefs.DetailInvalidData)
	}
	return res.str, nil
}

// getVecOpt returns the array value for key, nil when absent.
func (m entryMap) getVecOpt(key string) ([]string, error) {
	res, ok := m[key]
	if !ok {
		return nil, nil
	}
	if !res.isVec {
		return nil, errdefs.Newf(errdefs.KindParse,
			"expected an array for key %q, found a string", key).
			WithDetail(errdefs.DetailInvalidData)
	}
	return res.vec, nil
}
