package blockfs

// findDirectory scans root.Directories[0:NumDirectories] for an exact-match
// name and returns its start block, or -1 if not found.
func findDirectory(root *RootRecord, dirName string) int64 {
	for i := int32(0); i < root.NumDirectories; i++ {
		if root.Directories[i].Name.String() == dirName {
			return root.Directories[i].StartBlock
		}
	}
	return -1
}

// findFile scans dir.Files[0:NumFiles] for an exact (name, ext) match and
// returns its index within Files, or -1 if not found.
func findFile(dir *DirEntryRecord, fname, fext string) int {
	for i := int32(0); i < dir.NumFiles; i++ {
		f := &dir.Files[i]
		if f.Name.String() == fname && f.Ext.String() == fext {
			return int(i)
		}
	}
	return -1
}
