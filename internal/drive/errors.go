package drive

import "errors"

var (
	ErrLinkLost   = errors.New("drive: link lost")
	ErrSyncFailed = errors.New("drive: position sync failed")
)
