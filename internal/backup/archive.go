package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/shirou/gopsutil/v4/disk"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"io"
	"os"
	"paperstack/internal/database"
	"paperstack/internal/misc"
	"paperstack/internal/storage"
	"paperstack/internal/types"
	"paperstack/logger"
	"time"
)

const (
	MetadataEntryName = "backup_metadata.json"
	ArchivePrefix     = "backups/"

	documentsDir     = "documents"
	profileImagesDir = "profile-images"
	tablesDir        = "database"
)

type (
	// Archive is a finished container staged on local disk. The caller owns Path
	// and must Remove it.
	Archive struct {
		Path     string
		Size     int64
		Manifest types.Manifest
	}

	Builder interface {
		Build(ctx context.Context, jobID uuid.UUID, scope types.BackupType) (*Archive, error)
	}

	BuilderOptions struct {
		StagingDir   string
		MinFreeBytes uint64
	}

	builder struct {
		documents database.DocumentRepository
		users     database.UserRepository
		staff     database.StaffRepository
		content   storage.Storage
		opts      BuilderOptions

		freeSpace func(dir string) (uint64, error)
		now       func() time.Time
	}

	sources struct {
		documents []*types.Document
		users     []*types.User
		staff     []*types.Staff
	}
)

// ArchiveKey is the blob store key of a job's archive.
func ArchiveKey(jobID uuid.UUID) string {
	return ArchivePrefix + jobID.String() + ".zip"
}

func NewBuilder(documents database.DocumentRepository, users database.UserRepository,
	staff database.StaffRepository, content storage.Storage, opts BuilderOptions) Builder {
	if opts.StagingDir == "" {
		opts.StagingDir = os.TempDir()
	}
	return &builder{
		documents: documents,
		users:     users,
		staff:     staff,
		content:   content,
		opts:      opts,
		freeSpace: diskFree,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (b *builder) Build(ctx context.Context, jobID uuid.UUID, scope types.BackupType) (*Archive, error) {
	if !scope.Valid() {
		return nil, &InvalidScopeError{Type: string(scope)}
	}

	if err := b.checkSpace(); err != nil {
		return nil, err
	}

	src, err := b.enumerate(ctx, scope)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(b.opts.StagingDir, "backup-"+jobID.String()+"-*.zip")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create staging file")
	}

	archive, err := b.write(ctx, tmp, jobID, scope, src)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, err
	}
	return archive, nil
}

func (b *builder) enumerate(ctx context.Context, scope types.BackupType) (*sources, error) {
	src := &sources{}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := b.documents.FindAll(ctx)
		if err != nil {
			return &EnumerationError{Source: "documents", Err: err}
		}
		src.documents = docs
		return nil
	})

	if scope == types.BackupTypeFull {
		g.Go(func() error {
			users, err := b.users.FindAll(ctx)
			if err != nil {
				return &EnumerationError{Source: "users", Err: err}
			}
			src.users = users
			return nil
		})
		g.Go(func() error {
			staff, err := b.staff.FindAll(ctx)
			if err != nil {
				return &EnumerationError{Source: "staff", Err: err}
			}
			src.staff = staff
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return src, nil
}

func (b *builder) write(ctx context.Context, out *os.File, jobID uuid.UUID, scope types.BackupType, src *sources) (*Archive, error) {
	zw := zip.NewWriter(out)
	manifest := types.Manifest{
		JobID:     jobID,
		Scope:     scope,
		CreatedAt: b.now(),
		Files:     make([]types.ManifestEntry, 0, len(src.documents)),
	}

	for _, doc := range src.documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := fmt.Sprintf("%s/%d-%s%s", documentsDir, doc.ID, misc.SanitizeName(doc.Title), misc.Extension(doc.FileName, misc.Extension(doc.FileKey, ".pdf")))
		entry, err := b.addBlob(ctx, zw, name, doc.FileKey, types.SourceKindDocument)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			manifest.Files = append(manifest.Files, *entry)
		}
	}

	if scope == types.BackupTypeFull {
		withImage := lo.Filter(src.users, func(item *types.User, index int) bool {
			return item.ProfileImageKey != ""
		})
		for _, user := range withImage {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			name := fmt.Sprintf("%s/%d-%s%s", profileImagesDir, user.ID, misc.SanitizeName(user.Name), misc.Extension(user.ProfileImageKey, ".jpg"))
			entry, err := b.addBlob(ctx, zw, name, user.ProfileImageKey, types.SourceKindProfileImage)
			if err != nil {
				return nil, err
			}
			if entry != nil {
				manifest.Files = append(manifest.Files, *entry)
			}
		}

		exports := []struct {
			name  string
			value interface{}
		}{
			{name: tablesDir + "/users.json", value: src.users},
			{name: tablesDir + "/staff.json", value: src.staff},
		}
		for _, export := range exports {
			data, err := json.MarshalIndent(export.value, "", "  ")
			if err != nil {
				return nil, errors.Wrap(err, "failed to export "+export.name)
			}
			if err := b.writeEntry(zw, export.name, bytes.NewReader(data)); err != nil {
				return nil, err
			}
			manifest.Files = append(manifest.Files, types.ManifestEntry{
				Name:       export.name,
				SourceKind: types.SourceKindTableExport,
				SizeBytes:  int64(len(data)),
			})
		}
	}

	manifest.FileCount = len(manifest.Files)
	manifest.TotalSize = lo.SumBy(manifest.Files, func(item types.ManifestEntry) int64 {
		return item.SizeBytes
	})

	metadata, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode backup metadata")
	}
	if err := b.writeEntry(zw, MetadataEntryName, bytes.NewReader(metadata)); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to finalize archive")
	}
	if err := out.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to close staging file")
	}

	stat, err := os.Stat(out.Name())
	if err != nil {
		return nil, err
	}

	return &Archive{
		Path:     out.Name(),
		Size:     stat.Size(),
		Manifest: manifest,
	}, nil
}

// addBlob copies one stored object into the archive. A fetch failure is logged
// and reported as a nil entry; only spool and archive write failures are returned.
func (b *builder) addBlob(ctx context.Context, zw *zip.Writer, name, key string, kind types.SourceKind) (*types.ManifestEntry, error) {
	spool, size, err := b.fetch(ctx, name, key)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			return nil, err
		}
		logger.Warn("skipping backup entry",
			zap.String("entry", name),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return nil, nil
	}
	defer release(spool)

	if err := b.writeEntry(zw, name, spool); err != nil {
		return nil, err
	}
	return &types.ManifestEntry{
		Name:       name,
		SourceKind: kind,
		SizeBytes:  size,
	}, nil
}

// fetch spools one stored object into a staging file, rewound for reading, so
// a broken read never leaves a partial entry in the archive.
func (b *builder) fetch(ctx context.Context, name, key string) (*os.File, int64, error) {
	if key == "" {
		return nil, 0, &FetchError{Name: name, Key: key, Err: errors.New("no stored file")}
	}

	f, err := b.content.Get(ctx, key)
	if err != nil {
		return nil, 0, &FetchError{Name: name, Key: key, Err: err}
	}

	defer func() {
		_ = f.Content.Close()
	}()

	spool, err := os.CreateTemp(b.opts.StagingDir, "entry-*")
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to create spool file")
	}

	size, err := io.Copy(spool, f.Content)
	if err != nil {
		release(spool)
		return nil, 0, &FetchError{Name: name, Key: key, Err: err}
	}

	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		release(spool)
		return nil, 0, errors.Wrap(err, "failed to rewind spool file")
	}
	return spool, size, nil
}

func release(f *os.File) {
	_ = f.Close()
	_ = os.Remove(f.Name())
}

func (b *builder) writeEntry(zw *zip.Writer, name string, r io.Reader) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: b.now(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to add archive entry "+name)
	}

	if _, err := io.Copy(w, r); err != nil {
		return errors.Wrap(err, "failed to write archive entry "+name)
	}
	return nil
}

func (b *builder) checkSpace() error {
	if b.opts.MinFreeBytes == 0 {
		return nil
	}

	free, err := b.freeSpace(b.opts.StagingDir)
	if err != nil {
		logger.Warn("could not determine free staging space",
			zap.String("dir", b.opts.StagingDir),
			zap.Error(err))
		return nil
	}

	if free < b.opts.MinFreeBytes {
		return &InsufficientSpaceError{Dir: b.opts.StagingDir, Free: free, Threshold: b.opts.MinFreeBytes}
	}
	return nil
}

func diskFree(dir string) (uint64, error) {
	usage, err := disk.Usage(dir)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}
