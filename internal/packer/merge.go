package packer

// reduceRecords merges records by path. Later records win per store, CODE is
// dropped wherever CONTENT is present, and shapes are checked on the way.
func reduceRecords(records []FileRecord) ([]normalizedFile, error) {
	index := map[string]int{}
	var files []normalizedFile
	for _, r := range records {
		if r.Discard {
			continue
		}
		if !r.Store.Valid() {
			return nil, invalidShape(r.Path, r.Store, "unknown store")
		}
		if r.Body == nil || !bodyAllowed(r.Store, r.Body) {
			return nil, invalidShape(r.Path, r.Store, describeBody(r.Body))
		}
		i, ok := index[r.Path]
		if !ok {
			i = len(files)
			index[r.Path] = i
			files = append(files, normalizedFile{path: r.Path, stores: NormalizedRecord{}})
		}
		files[i].stores[r.Store] = r.Body
	}
	for _, f := range files {
		if _, ok := f.stores[StoreStat]; !ok {
			return nil, missingStat(f.path)
		}
		if _, ok := f.stores[StoreContent]; ok {
			delete(f.stores, StoreCode)
		}
	}
	return files, nil
}

// Normalize exposes the merge step: one NormalizedRecord per path, keyed by
// path.
func Normalize(records []FileRecord) (map[string]NormalizedRecord, error) {
	files, err := reduceRecords(records)
	if err != nil {
		return nil, err
	}
	out := make(map[string]NormalizedRecord, len(files))
	for _, f := range files {
		out[f.path] = f.stores
	}
	return out, nil
}

// findEntrypoint returns the path flagged as entrypoint, if any. Flags on two
// different paths are a contract violation.
func findEntrypoint(records []FileRecord) (string, error) {
	var entry string
	for _, r := range records {
		if r.Discard || !r.Entrypoint {
			continue
		}
		if entry != "" && entry != r.Path {
			return "", invalidShape(r.Path, r.Store, "second entrypoint besides "+entry)
		}
		entry = r.Path
	}
	return entry, nil
}

func describeBody(b Body) string {
	switch b.(type) {
	case nil:
		return "missing body"
	case Directly:
		return "bad body: directly"
	case Buffer:
		return "bad body: buffer"
	case Text:
		return "bad body: text"
	case Links:
		return "bad body: links"
	case Bytecode:
		return "bad body: bytecode"
	case StatSnapshot:
		return "bad body: stat"
	default:
		return "bad body"
	}
}
