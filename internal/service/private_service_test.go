package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"alcyxob/media-service/internal/domain"
	"alcyxob/media-service/internal/repository"
	"alcyxob/media-service/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner    = domain.Principal{UserID: "user-1", Role: domain.RoleUser}
	stranger = domain.Principal{UserID: "user-2", Role: domain.RoleUser}
	admin    = domain.Principal{UserID: "admin-1", Role: domain.RoleAdmin}
)

func newTestPrivateService(t *testing.T, repo repository.PrivateUploadRepository) (PrivateMediaService, string) {
	t.Helper()
	p, dir := newTestPipeline(t, true, &fakeTranscoder{})
	return NewPrivateMediaService(p, repo), dir
}

func readAll(t *testing.T, obj *PrivateObject) []byte {
	t.Helper()
	defer obj.Body.Close()
	b, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	return b
}

func TestPrivateUploadAndRead(t *testing.T) {
	repo := memory.NewPrivateUploadRepository()
	svc, dir := newTestPrivateService(t, repo)
	ctx := context.Background()

	content := pngBytes(512)
	res, err := svc.Upload(ctx, owner, " id_document ", []IncomingFile{memFile("passport.png", "image/png", content)})
	require.NoError(t, err)
	assert.Nil(t, res.Assets)
	require.Len(t, res.Private, 1)

	d := res.Private[0]
	assert.Equal(t, "/api/uploads/private/"+d.ID, d.URL)
	assert.Equal(t, domain.MimePNG, d.Mime)
	assert.Equal(t, domain.KindImage, d.Kind)
	assert.Equal(t, int64(512), d.Size)
	assert.Equal(t, "passport.png", d.OriginalName)

	// no thumbnail for private files
	files := storedFiles(t, dir)
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(files[0], "private/"))

	row, err := repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "id_document", row.Purpose)
	assert.Equal(t, owner.UserID, row.OwnerUserID)

	t.Run("owner", func(t *testing.T) {
		obj, err := svc.Open(ctx, owner, d.ID)
		require.NoError(t, err)
		assert.Equal(t, content, readAll(t, obj))
		assert.Equal(t, domain.MimePNG, obj.Upload.Mime)
	})

	t.Run("admin", func(t *testing.T) {
		obj, err := svc.Open(ctx, admin, d.ID)
		require.NoError(t, err)
		assert.Equal(t, content, readAll(t, obj))
	})

	t.Run("stranger", func(t *testing.T) {
		_, err := svc.Open(ctx, stranger, d.ID)
		requireKind(t, err, KindAccess, MsgForbidden)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := svc.Open(ctx, admin, "does-not-exist")
		requireKind(t, err, KindNotFound, MsgNotFound)
	})
}

func TestPrivateOpenChecksExistenceBeforeOwnership(t *testing.T) {
	repo := memory.NewPrivateUploadRepository()
	svc, _ := newTestPrivateService(t, repo)

	repo.Put(domain.PrivateUpload{ID: "no-key", OwnerUserID: owner.UserID, Mime: domain.MimePNG})
	repo.Put(domain.PrivateUpload{ID: "gone", OwnerUserID: owner.UserID, StorageKey: "private/gone.png", Mime: domain.MimePNG})

	_, err := svc.Open(context.Background(), stranger, "no-key")
	requireKind(t, err, KindNotFound, MsgNotFound)

	_, err = svc.Open(context.Background(), owner, "gone")
	requireKind(t, err, KindNotFound, MsgNotFound)
}

func TestPrivateUploadValidation(t *testing.T) {
	svc, dir := newTestPrivateService(t, memory.NewPrivateUploadRepository())
	ctx := context.Background()
	png := memFile("a.png", "image/png", pngBytes(64))

	for _, purpose := range []string{"", "   ", "has space", strings.Repeat("x", 65), "../etc"} {
		_, err := svc.Upload(ctx, owner, purpose, []IncomingFile{png})
		requireKind(t, err, KindValidation, MsgMissingPurpose)
	}

	_, err := svc.Upload(ctx, owner, "avatar", []IncomingFile{png, png, png, png})
	requireKind(t, err, KindValidation, "Too many files. You can upload up to 3 at once.")

	_, err = svc.Upload(ctx, owner, "avatar", []IncomingFile{memFile("a.mp4", "video/mp4", []byte("x"))})
	requireKind(t, err, KindTypeLimit, MsgUnsupportedType)

	big := memFile("a.png", "image/png", nil)
	big.Size = MaxPrivateFileSize + 1
	_, err = svc.Upload(ctx, owner, "avatar", []IncomingFile{big})
	requireKind(t, err, KindSizeLimit, MsgTooLarge)

	_, err = svc.Upload(ctx, domain.Principal{}, "avatar", []IncomingFile{png})
	requireKind(t, err, KindAuth, MsgAuthRequired)

	assert.Empty(t, storedFiles(t, dir))
}

// flakyRepo fails every Create after the first.
type flakyRepo struct {
	*memory.PrivateUploadRepository
	created int
}

func (r *flakyRepo) Create(ctx context.Context, u *domain.PrivateUpload) (string, error) {
	r.created++
	if r.created > 1 {
		return "", errors.New("connection reset")
	}
	return r.PrivateUploadRepository.Create(ctx, u)
}

func TestPrivateUploadRollsBackRowsAndFiles(t *testing.T) {
	repo := &flakyRepo{PrivateUploadRepository: memory.NewPrivateUploadRepository()}
	svc, dir := newTestPrivateService(t, repo)

	_, err := svc.Upload(context.Background(), owner, "receipts", []IncomingFile{
		memFile("a.png", "image/png", pngBytes(64)),
		memFile("b.jpg", "image/jpeg", jpegBytes(64)),
	})
	requireKind(t, err, KindInternal, MsgStoreFailed)
	assert.Equal(t, 0, repo.Len())
	assert.Empty(t, storedFiles(t, dir))
}

func TestPrivateResultDiscardDeletesRows(t *testing.T) {
	repo := memory.NewPrivateUploadRepository()
	svc, dir := newTestPrivateService(t, repo)

	res, err := svc.Upload(context.Background(), owner, "avatar", []IncomingFile{memFile("a.png", "image/png", pngBytes(64))})
	require.NoError(t, err)
	require.Equal(t, 1, repo.Len())

	res.Discard(context.Background())
	assert.Equal(t, 0, repo.Len())
	assert.Empty(t, storedFiles(t, dir))
}

func TestPrivateURLEscapesID(t *testing.T) {
	assert.Equal(t, "/api/uploads/private/a%2Fb", PrivateURL("a/b"))
}
