package googleDriveApi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"time"

	"github.com/KotFed0t/trading_simulator/config"
	"github.com/KotFed0t/trading_simulator/utils"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const downloadLinkTemplate = "https://drive.google.com/file/d/%s/view"

type GoogleDriveApi struct {
	srv     *drive.Service
	fileTTL time.Duration
}

// New returns nil when no credentials file is configured, exports then fall back to attachments only.
func New(ctx context.Context, cfg config.GoogleDrive) *GoogleDriveApi {
	if cfg.CredentialsFile == "" {
		slog.Info("google drive credentials not set, uploads disabled")
		return nil
	}

	srv, err := drive.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		slog.Error("failed on drive.NewService")
		panic(err)
	}
	return &GoogleDriveApi{srv: srv, fileTTL: cfg.FileTTL}
}

func (a *GoogleDriveApi) UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoogleDriveApi.UploadFile"

	slog.Debug("UploadFile start", slog.String("rqID", rqID), slog.String("op", op), slog.String("filename", filename))

	fileMeta := &drive.File{
		Name:     filename,
		MimeType: mime.TypeByExtension(filepath.Ext(filename)),
	}

	// Media uploads in chunks and retries them on network errors
	uploadedFile, err := a.srv.Files.
		Create(fileMeta).
		Media(reader).
		Context(ctx).
		Do()
	if err != nil {
		slog.Error("failed on uploading file to google drive", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	perm := &drive.Permission{
		Type: "anyone",
		Role: "reader",
	}

	_, err = a.srv.Permissions.Create(uploadedFile.Id, perm).Context(ctx).Do()
	if err != nil {
		slog.Error("failed on creating permission to uploaded file in google drive", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	slog.Debug("UploadFile completed", slog.String("rqID", rqID), slog.String("op", op), slog.String("fileID", uploadedFile.Id))

	return DownloadLink(uploadedFile.Id), nil
}

func DownloadLink(fileID string) string {
	return fmt.Sprintf(downloadLinkTemplate, fileID)
}

// DeleteOldFiles removes uploaded exports older than the configured TTL and empties the trash.
func (a *GoogleDriveApi) DeleteOldFiles(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoogleDriveApi.DeleteOldFiles"

	slog.Debug("DeleteOldFiles start", slog.String("rqID", rqID), slog.String("op", op))

	totalFiles := 0
	deletedFiles := 0
	deadline := time.Now().Add(-a.fileTTL)

	err := a.srv.Files.List().Fields("nextPageToken, files(id, createdTime)").Pages(ctx, func(r *drive.FileList) error {
		totalFiles += len(r.Files)
		for _, f := range r.Files {
			old, err := Expired(f.CreatedTime, deadline)
			if err != nil {
				slog.Error(
					"failed parse time",
					slog.String("rqID", rqID),
					slog.String("op", op),
					slog.String("err", err.Error()),
					slog.String("fileID", f.Id),
					slog.String("createdTime", f.CreatedTime),
				)
				continue
			}
			if !old {
				continue
			}

			if err = a.srv.Files.Delete(f.Id).Context(ctx).Do(); err != nil {
				slog.Error(
					"failed delete file",
					slog.String("rqID", rqID),
					slog.String("op", op),
					slog.String("err", err.Error()),
					slog.String("fileID", f.Id),
				)
				continue
			}
			deletedFiles++
		}
		return nil
	})
	if err != nil {
		slog.Error("failed on getting files", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if err = a.srv.Files.EmptyTrash().Context(ctx).Do(); err != nil {
		slog.Error("failed empty trash", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	slog.Info("delete old files done", slog.String("rqID", rqID), slog.Int("deletedFiles", deletedFiles), slog.Int("remaining files", totalFiles-deletedFiles))

	return nil
}

// Expired reports whether an RFC3339 drive timestamp is before deadline.
func Expired(createdTime string, deadline time.Time) (bool, error) {
	created, err := time.Parse(time.RFC3339, createdTime)
	if err != nil {
		return false, err
	}
	return created.Before(deadline), nil
}
