// Package fileops provides guarded file reads for user supplied content.
//
// Knowledge files come from local paths or from cloned repositories, so every
// read goes through the same checks, in this order:
//
//  1. Path security: ValidatePathSecurity rejects traversal in relative paths.
//  2. Containment: ValidateFileInDirectory keeps reads (and symlink targets)
//     inside a base directory.
//  3. Size: ValidateFileSizeLimit bounds memory use.
//  4. Content: ValidateContentSecurity rejects control bytes and markup
//     injection before the text reaches a model prompt.
//
// ReadFile runs all of them:
//
//	data, err := fileops.ReadFile(path, fileops.ReadOptions{
//	    BaseDir: repoRoot,
//	    MaxSize: 10 * 1024 * 1024,
//	})
//
// ScanFiles walks a directory inside an os.Root so that listing cannot
// escape the scan root either.
package fileops
