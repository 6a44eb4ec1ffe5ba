package codec

import (
	"fmt"
	"os"
	"sort"
)

// DecodedFile is one file recovered from a FILES payload by FilesCodec.Decode.
// Exactly one of Bytes or Path is set: Path when the total payload exceeded
// maxPlainSize and the file was spooled to a temp file (spec.md §4.2),
// Bytes otherwise.
type DecodedFile struct {
	Key  string
	Name string
	Size int64
	Type  string
	Bytes []byte
	Path  string
}

// FilesCodec implements data_type 0x02.
//
// Encode accepts a single path (string), an ordered list of paths
// ([]string), or a name→path mapping (map[string]string); it concatenates
// file contents into one byte stream and populates the "Files" header with
// per-entry key/name/size (spec.md §4.2).
type FilesCodec struct{}

func (FilesCodec) DataType() DataType { return Files }

func (FilesCodec) Encode(value any, headers Header) ([]byte, error) {
	type src struct {
		key, name, path string
	}
	var sources []src

	switch v := value.(type) {
	case string:
		sources = append(sources, src{key: "0", name: baseName(v), path: v})
	case []string:
		for i, p := range v {
			sources = append(sources, src{key: fmt.Sprint(i), name: baseName(p), path: p})
		}
	case map[string]string:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys) // deterministic wire order
		for _, k := range keys {
			sources = append(sources, src{key: k, name: baseName(v[k]), path: v[k]})
		}
	default:
		return nil, fmt.Errorf("codec: FILES cannot encode %T", value)
	}

	var payload []byte
	entries := make([]FileEntry, 0, len(sources))
	for _, s := range sources {
		data, err := os.ReadFile(s.path)
		if err != nil {
			return nil, err
		}
		entries = append(entries, FileEntry{Key: s.key, Name: s.name, Size: int64(len(data))})
		payload = append(payload, data...)
	}
	headers.SetFiles(entries)
	return payload, nil
}

// Decode splits payload back into files using the "Files" header. When the
// total payload size exceeds maxPlainSize (0 = no limit), each file is
// spooled to its own temp file instead of being held in memory.
func (FilesCodec) Decode(payload []byte, headers Header, maxPlainSize int64) (any, error) {
	entries, err := headers.Files()
	if err != nil {
		return nil, err
	}
	spool := maxPlainSize > 0 && int64(len(payload)) > maxPlainSize

	out := make([]DecodedFile, 0, len(entries))
	var off int64
	for _, e := range entries {
		if off+e.Size > int64(len(payload)) {
			return nil, fmt.Errorf("codec: Files header declares more bytes than payload carries")
		}
		chunk := payload[off : off+e.Size]
		off += e.Size

		df := DecodedFile{Key: e.Key, Name: e.Name, Size: e.Size, Type: e.Type}
		if spool {
			f, err := os.CreateTemp("", "cats-file-*")
			if err != nil {
				return nil, err
			}
			if _, err := f.Write(chunk); err != nil {
				f.Close()
				os.Remove(f.Name())
				return nil, err
			}
			if err := f.Close(); err != nil {
				return nil, err
			}
			df.Path = f.Name()
		} else {
			df.Bytes = chunk
		}
		out = append(out, df)
	}
	return out, nil
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}
