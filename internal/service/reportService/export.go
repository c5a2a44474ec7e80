package reportService

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/trading_simulator/internal/model"
	"github.com/KotFed0t/trading_simulator/utils"
)

var ErrExportUnavailable = errors.New("error report export is not configured")

// ExportLeaderboards renders full user and stock leaderboards into a file.
// Content above the file limit is uploaded to cloud storage and returned as a link.
func (s *ReportService) ExportLeaderboards(ctx context.Context) (file model.ReportFile, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "ReportService.ExportLeaderboards"

	slog.Debug("ExportLeaderboards start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		if err != nil {
			slog.Error("ExportLeaderboards failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("ExportLeaderboards completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("size", len(file.Content)))
		}
	}()

	if s.generator == nil {
		return model.ReportFile{}, ErrExportUnavailable
	}

	users, err := s.repo.GetUsers(ctx)
	if err != nil {
		return model.ReportFile{}, err
	}

	// leaderboards without a cap
	userReports, err := s.GetTopUsers(ctx, max(len(users), 1))
	if err != nil {
		return model.ReportFile{}, err
	}

	stockReports, err := s.stockReports(ctx, 0)
	if err != nil {
		return model.ReportFile{}, err
	}
	stockReports = sortStocks(stockReports)

	content, ext, err := s.generator.Generate(ctx, userReports, stockReports)
	if err != nil {
		return model.ReportFile{}, err
	}

	file = model.ReportFile{
		Name:    fmt.Sprintf("leaderboards_%s%s", time.Now().Format("20060102_150405"), ext),
		Content: content,
	}

	if s.fileLimit > 0 && len(content) > s.fileLimit {
		if s.storage == nil {
			return model.ReportFile{}, fmt.Errorf("report is %d bytes, limit %d and no cloud storage", len(content), s.fileLimit)
		}

		file.DownloadLink, err = s.storage.UploadFile(ctx, bytes.NewReader(content), file.Name)
		if err != nil {
			return model.ReportFile{}, err
		}
		file.Content = nil
	}

	return file, nil
}
