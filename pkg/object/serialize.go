package object

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// treeSortKey returns the name used for ordering comparisons, with a
// trailing "/" appended to directory entries. This reproduces Git's quirk
// where a file "foo" sorts before "foo.txt" (it is a prefix of it) but a
// directory "foo" sorts after it, because it compares as "foo/" and '/'
// (0x2f) is greater than '.' (0x2e).
func treeSortKey(e TreeEntry) string {
	if e.IsDir {
		return e.Name + "/"
	}
	return e.Name
}

// SortTreeEntries sorts entries by Git's directory-aware name comparator.
func SortTreeEntries(entries []TreeEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return treeSortKey(entries[i]) < treeSortKey(entries[j])
	})
}

// MarshalTree serializes a TreeObj to Git's binary tree format: entries are
// sorted by the directory-aware comparator, and each is encoded as
//
//	<mode-ascii> <name>\0<20 raw bytes of the entry's SHA-1>
//
// concatenated with no separators between entries.
func MarshalTree(tr *TreeObj) []byte {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	SortTreeEntries(sorted)

	var buf bytes.Buffer
	for _, e := range sorted {
		mode := e.Mode
		oid := e.BlobHash
		if e.IsDir {
			mode = TreeModeDir
			oid = e.SubtreeHash
		} else if mode == "" {
			mode = TreeModeFile
		}
		fmt.Fprintf(&buf, "%s %s\x00", mode, e.Name)
		raw, _ := hex.DecodeString(string(oid))
		buf.Write(raw)
	}
	return buf.Bytes()
}

// UnmarshalTree parses a TreeObj from Git's binary tree format.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	for len(data) > 0 {
		nul := bytes.IndexByte(data, 0)
		if nul < 0 {
			return nil, fmt.Errorf("unmarshal tree: missing NUL terminator")
		}
		header := string(data[:nul])
		mode, name, ok := strings.Cut(header, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal tree: malformed entry header %q", header)
		}
		if len(data) < nul+1+20 {
			return nil, fmt.Errorf("unmarshal tree: truncated oid for entry %q", name)
		}
		oid := Hash(hex.EncodeToString(data[nul+1 : nul+1+20]))
		data = data[nul+1+20:]

		entry := TreeEntry{Name: name}
		switch mode {
		case TreeModeDir:
			entry.IsDir = true
			entry.Mode = TreeModeDir
			entry.SubtreeHash = oid
		case TreeModeFile, TreeModeExecutable:
			entry.Mode = mode
			entry.BlobHash = oid
		default:
			return nil, fmt.Errorf("unmarshal tree: unknown mode %q", mode)
		}
		tr.Entries = append(tr.Entries, entry)
	}
	return tr, nil
}

// ---------------------------------------------------------------------------
// CommitObj
// ---------------------------------------------------------------------------

func formatSignature(s Signature) string {
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, s.Seconds, s.Timezone)
}

func parseSignature(line string) (Signature, error) {
	// "<name> <email> <seconds> <tz>" with name possibly containing spaces.
	open := strings.LastIndex(line, "<")
	close := strings.LastIndex(line, ">")
	if open < 0 || close < open {
		return Signature{}, fmt.Errorf("malformed signature %q", line)
	}
	name := strings.TrimSpace(line[:open])
	email := line[open+1 : close]
	rest := strings.TrimSpace(line[close+1:])
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return Signature{}, fmt.Errorf("malformed signature tail %q", rest)
	}
	secs, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Signature{}, fmt.Errorf("malformed signature timestamp %q: %w", fields[0], err)
	}
	return Signature{Name: name, Email: email, Seconds: secs, Timezone: fields[1]}, nil
}

// MarshalCommit serializes a CommitObj to Git's plaintext commit format:
//
//	tree <oid>
//	parent <oid>     (zero or more)
//	author <name> <email> <epoch> <±HHMM>
//	committer <name> <email> <epoch> <±HHMM>
//
//	<message>
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", string(c.TreeHash))
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", string(p))
	}
	fmt.Fprintf(&buf, "author %s\n", formatSignature(c.Author))
	fmt.Fprintf(&buf, "committer %s\n", formatSignature(c.Committer))
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses a CommitObj from Git's plaintext commit format.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal commit: missing header/message separator")
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	c := &CommitObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: malformed header line %q", line)
		}
		switch key {
		case "tree":
			c.TreeHash = Hash(val)
		case "parent":
			c.Parents = append(c.Parents, Hash(val))
		case "author":
			sig, err := parseSignature(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: author: %w", err)
			}
			c.Author = sig
		case "committer":
			sig, err := parseSignature(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: committer: %w", err)
			}
			c.Committer = sig
		default:
			return nil, fmt.Errorf("unmarshal commit: unknown header key %q", key)
		}
	}
	return c, nil
}
