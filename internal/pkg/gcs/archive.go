package gcs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/log_messages"
	"ess-loan-gateway/internal/pkg/logger"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// ArchivedDocument is one signed ESS document kept for audit.
type ArchivedDocument struct {
	ApplicationID string
	MsgID         string
	MessageType   string
	Direction     Direction
	Body          []byte
	At            time.Time
}

type GCSClient struct {
	Client     *storage.Client
	BucketName string
	FolderName string
}

type ArchiveInterface interface {
	Archive(ctx context.Context, doc ArchivedDocument) error
	Close(ctx context.Context)
}

func NewGCSClient(ctx context.Context, bucketName, folderName string) (ArchiveInterface, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSClient{
		Client:     client,
		BucketName: bucketName,
		FolderName: folderName,
	}, nil
}

func (g *GCSClient) Close(ctx context.Context) {
	if g.Client == nil {
		return
	}
	if err := g.Client.Close(); err != nil {
		logger.CtxError(ctx, "Error closing GCS client", err)
	}
}

// ObjectName is <folder>/<applicationId|unassigned>/<yyyymmdd>/<direction>_<messageType>_<msgId>.xml
func (g *GCSClient) ObjectName(doc ArchivedDocument) string {
	appID := doc.ApplicationID
	if appID == "" {
		appID = "unassigned"
	}
	return fmt.Sprintf("%s/%s/%s/%s_%s_%s.xml",
		g.FolderName, appID, doc.At.UTC().Format("20060102"), doc.Direction, doc.MessageType, doc.MsgID)
}

// Archive writes the document once. A redelivered message whose object already exists is not an error.
func (g *GCSClient) Archive(ctx context.Context, doc ArchivedDocument) error {
	objectName := g.ObjectName(doc)
	object := g.Client.Bucket(g.BucketName).Object(objectName)

	writer := object.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = consts.ContentTypeXML
	writer.Metadata = map[string]string{
		"applicationId": doc.ApplicationID,
		"msgId":         doc.MsgID,
		"messageType":   doc.MessageType,
	}
	if _, err := writer.Write(doc.Body); err != nil {
		_ = writer.Close()
		logger.CtxError(ctx, log_messages.ArchiveFailed, err, zap.String("object", objectName))
		return err
	}
	if err := writer.Close(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
			logger.CtxDebug(ctx, "Signed document already archived", zap.String("object", objectName))
			return nil
		}
		logger.CtxError(ctx, log_messages.ArchiveFailed, err, zap.String("object", objectName))
		return err
	}
	logger.CtxDebug(ctx, "Archived signed document", zap.String("object", objectName))
	return nil
}
