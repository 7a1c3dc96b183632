package blockfs

// PathKind distinguishes the three shapes a parsed path can take.
type PathKind int

const (
	// KindRoot is the input "/" exactly.
	KindRoot PathKind = iota
	// KindDirOnly is "/<name>" with no further segment.
	KindDirOnly
	// KindFile is "/<dir>/<name>" or "/<dir>/<name>.<ext>".
	KindFile
)

// ParsedPath is the result of parsing a textual path.
type ParsedPath struct {
	Kind PathKind
	Dir  string
	Name string
	Ext  string
}

// ParsePath splits a slash-prefixed path into {kind, directory-name,
// file-name, extension}, validating component lengths. It scans the input
// character by character rather than using formatted scanning (fmt.Sscanf),
// so malformed input fails deterministically instead of partially filling
// output fields.
func ParsePath(path string) (ParsedPath, error) {
	var p ParsedPath

	if len(path) == 0 || path[0] != '/' {
		return p, ErrBadPath
	}
	if len(path) > MaxPathLen {
		return p, ErrNameTooLong
	}
	if path == "/" {
		p.Kind = KindRoot
		return p, nil
	}

	rest := path[1:]

	// First segment: up to the next '/' or end of string.
	slashIdx := -1
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			slashIdx = i
			break
		}
	}

	if slashIdx == -1 {
		// "/<name>" - DirOnly.
		if len(rest) == 0 {
			return p, ErrBadPath
		}
		if len(rest) > MaxFilename {
			return p, ErrNameTooLong
		}
		p.Kind = KindDirOnly
		p.Dir = rest
		return p, nil
	}

	dir := rest[:slashIdx]
	tail := rest[slashIdx+1:]

	if len(dir) == 0 || len(tail) == 0 {
		return p, ErrBadPath
	}
	if len(dir) > MaxFilename {
		return p, ErrNameTooLong
	}

	// Reject a third path level outright: the filesystem is strictly
	// two-level.
	for i := 0; i < len(tail); i++ {
		if tail[i] == '/' {
			return p, ErrBadPath
		}
	}

	// Second segment: up to the first '.'; the remainder is the dotless
	// extension.
	dotIdx := -1
	for i := 0; i < len(tail); i++ {
		if tail[i] == '.' {
			dotIdx = i
			break
		}
	}

	var fname, fext string
	if dotIdx == -1 {
		fname = tail
	} else {
		fname = tail[:dotIdx]
		fext = tail[dotIdx+1:]
	}

	if len(fname) == 0 {
		return p, ErrBadPath
	}
	if len(fname) > MaxFilename {
		return p, ErrNameTooLong
	}
	if len(fext) > MaxExtension {
		return p, ErrNameTooLong
	}

	p.Kind = KindFile
	p.Dir = dir
	p.Name = fname
	p.Ext = fext
	return p, nil
}
