package pipeline

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Uploader delivers a signed artifact to the asset server.
type Uploader interface {
	Upload(ctx context.Context, localPath, remotePath string) error
}

// SCPUploader copies artifacts over scp, authenticating with sshpass
// the same way the CI job used to.
type SCPUploader struct {
	host     string
	user     string
	password string
	run      runCommandFunc
}

// NewSCPUploader constructs an SCPUploader for the given asset server.
func NewSCPUploader(host, user, password string) *SCPUploader {
	return &SCPUploader{host: host, user: user, password: password, run: runCommand}
}

// Upload ensures the remote directory exists, then copies the file.
func (u *SCPUploader) Upload(ctx context.Context, localPath, remotePath string) error {
	remoteDir := path.Dir(remotePath)
	target := u.user + "@" + u.host

	out, err := u.run(ctx, "sshpass", "-p", u.password,
		"ssh", "-o", "StrictHostKeyChecking=no", target,
		"mkdir", "-p", remoteDir)
	if err != nil {
		return fmt.Errorf("create remote directory %s: %w: %s", remoteDir, err, string(out))
	}

	out, err = u.run(ctx, "sshpass", "-p", u.password,
		"scp", "-o", "StrictHostKeyChecking=no",
		localPath, target+":"+remotePath)
	if err != nil {
		return fmt.Errorf("upload to %s: %w: %s", remotePath, err, string(out))
	}
	return nil
}

// BuildRemoteDest resolves the remote destination for a task. A path
// ending in "/" names a directory and receives "<slug>.ipa"; anything
// else is taken as the full remote file path.
func BuildRemoteDest(assetServerPath, taskName string) string {
	if assetServerPath == "" {
		return path.Join("/ipa", Slugify(taskName)+".ipa")
	}
	if strings.HasSuffix(assetServerPath, "/") {
		return assetServerPath + Slugify(taskName) + ".ipa"
	}
	return assetServerPath
}
