package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

type azureStorage struct {
	client    *azblob.Client
	container string
}

// NewAzureStorage stores uploads as block blobs in one container
func NewAzureStorage(accountName, accountKey, container string) (UploadStore, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return &azureStorage{client: client, container: container}, nil
}

func (s *azureStorage) Backend() string {
	return "azure"
}

func (s *azureStorage) Save(ctx context.Context, name string, data []byte) error {
	if _, err := s.client.UploadBuffer(ctx, s.container, name, data, nil); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	return nil
}

func (s *azureStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	downloadResponse, err := s.client.DownloadStream(ctx, s.container, name, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return nil, ErrUploadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	return downloadResponse.Body, nil
}
