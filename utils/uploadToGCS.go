package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// MaxDocumentSize bounds a single compliance document upload.
const MaxDocumentSize = 20 << 20

var allowedDocumentMimeTypes = map[string]bool{
	"application/pdf":          true,
	"application/msword":       true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
	"image/jpeg": true,
	"image/png":  true,
}

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC; GCS_CREDENTIALS_JSON overrides for local runs.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

// DetectDocumentMimeType sniffs data and fixes up zip-based office formats by extension.
func DetectDocumentMimeType(objectName string, data []byte) string {
	mimeType := http.DetectContentType(data)
	if mimeType == "application/zip" {
		if strings.HasSuffix(objectName, ".docx") {
			mimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
		} else if strings.HasSuffix(objectName, ".xlsx") {
			mimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		}
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}

func IsAllowedDocumentType(mimeType string) bool {
	return allowedDocumentMimeTypes[mimeType]
}

// ComplianceObjectName is the bucket key of a document uploaded for an allocation.
func ComplianceObjectName(allocationID int64, filename string) string {
	return path.Join("compliance", fmt.Sprintf("allocation-%d", allocationID), GenerateUniqueFilename()+"_"+SanitizeObjectName(filename))
}

// UploadComplianceDocument stores a document in GCS_BUCKET and returns its
// gs:// reference, which is what the ledger records as the document ref.
func UploadComplianceDocument(ctx context.Context, objectName string, fileContent io.Reader) (string, error) {
	fileData, err := io.ReadAll(io.LimitReader(fileContent, MaxDocumentSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read file content: %v", err)
	}
	if len(fileData) == 0 {
		return "", errors.New("document is empty")
	}
	if len(fileData) > MaxDocumentSize {
		return "", fmt.Errorf("document exceeds %d bytes", MaxDocumentSize)
	}

	mimeType := DetectDocumentMimeType(objectName, fileData)
	if !IsAllowedDocumentType(mimeType) {
		return "", fmt.Errorf("unsupported file type: %s", mimeType)
	}

	bucketName := os.Getenv("GCS_BUCKET")
	if bucketName == "" {
		return "", errors.New("GCS_BUCKET is required")
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = mimeType

	if _, err := wc.Write(fileData); err != nil {
		return "", fmt.Errorf("failed to upload file to Google Cloud Storage: %v", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %v", err)
	}

	return "gs://" + bucketName + "/" + objectName, nil
}
