package config

import (
	"fmt"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// JobFile is the HCL document accepted by --config. Every attribute is
// optional; relative paths are taken from the file's directory.
//
//	sources       = ["notes.txt", "/home/u/proj"]
//	destinations  = ["/mnt/a", "/mnt/b"]
//	workers       = 4
//	chunk_size    = 1048576
//	log_level     = "debug"
//	log_format    = "json"
//	progress_addr = "127.0.0.1:9400"
type JobFile struct {
	Sources      []string `hcl:"sources,optional"`
	Destinations []string `hcl:"destinations,optional"`
	Workers      *int     `hcl:"workers,optional"`
	ChunkSize    *int     `hcl:"chunk_size,optional"`
	LogLevel     *string  `hcl:"log_level,optional"`
	LogFormat    *string  `hcl:"log_format,optional"`
	ProgressAddr *string  `hcl:"progress_addr,optional"`
}

// LoadJobFile parses the job file at path.
func LoadJobFile(path string) (*JobFile, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse job file %s: %w", path, diags)
	}
	job, err := decodeJobFile(file.Body, path)
	if err != nil {
		return nil, err
	}
	job.resolve(filepath.Dir(path))
	return job, nil
}

// ParseJobFile parses src as a job file named filename. Relative paths are
// left as written.
func ParseJobFile(src []byte, filename string) (*JobFile, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse job file %s: %w", filename, diags)
	}
	return decodeJobFile(file.Body, filename)
}

func decodeJobFile(body hcl.Body, filename string) (*JobFile, error) {
	var job JobFile
	if diags := gohcl.DecodeBody(body, nil, &job); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode job file %s: %w", filename, diags)
	}
	return &job, nil
}

func (j *JobFile) resolve(dir string) {
	for i, p := range j.Sources {
		j.Sources[i] = resolvePath(dir, p)
	}
	for i, p := range j.Destinations {
		j.Destinations[i] = resolvePath(dir, p)
	}
}

func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// apply layers the file's settings over cfg. Paths are appended.
func (j *JobFile) apply(cfg *BackupConfig) {
	cfg.Sources = append(cfg.Sources, j.Sources...)
	cfg.Destinations = append(cfg.Destinations, j.Destinations...)
	if j.Workers != nil {
		cfg.Workers = *j.Workers
	}
	if j.ChunkSize != nil {
		cfg.ChunkSize = *j.ChunkSize
	}
	if j.LogLevel != nil {
		cfg.LogLevel = *j.LogLevel
	}
	if j.LogFormat != nil {
		cfg.LogFormat = *j.LogFormat
	}
	if j.ProgressAddr != nil {
		cfg.ProgressAddr = *j.ProgressAddr
	}
}
