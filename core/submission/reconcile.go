package submission

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ReconcileUploads deletes stored submission files that no submission references and that are
// older than olderThan. Younger objects may belong to uploads whose row is still being written.
func (svc *Service) ReconcileUploads(ctx context.Context, olderThan time.Duration) (int, error) {
	keys, err := svc.repo.ListFileKeys(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "listing file keys")
	}
	referenced := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		referenced[k] = struct{}{}
	}

	listCtx, cancel := context.WithTimeout(ctx, svc.conf.StorageTimeout)
	objects, err := svc.storage.List(listCtx, FileKeyPrefix)
	cancel()
	if err != nil {
		return 0, errors.Wrap(err, "listing stored files")
	}

	cutoff := svc.now().Add(-olderThan)
	var deleted int
	for _, obj := range objects {
		if _, ok := referenced[obj.Key]; ok || obj.UploadedAt.After(cutoff) {
			continue
		}
		delCtx, cancel := context.WithTimeout(ctx, svc.conf.StorageTimeout)
		err := svc.storage.Delete(delCtx, obj.Key)
		cancel()
		if err != nil {
			return deleted, errors.Wrapf(err, "deleting %s", obj.Key)
		}
		svc.logger.Info("deleted orphaned upload " + obj.Key)
		deleted++
	}
	return deleted, nil
}
