package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/manufacturing_backend/utils"
	"github.com/bsm/redislock"
)

const postingLockType = "mfg_posting"

// AcquireStatePostingLock serializes transitions on one state key across instances.
// Without a lock client there is a single instance and the controller mutex is enough.
func AcquireStatePostingLock(ctx context.Context, locker *redislock.Client, stateKey string) (func(), error) {
	if locker == nil {
		return func() {}, nil
	}
	return utils.PostingLock(ctx, locker, postingLockType, stateKey, "postingLock.go", "AcquireStatePostingLock")
}
