package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/joseph-ayodele/invoice-tracker/constants"
)

// AzureConfig selects how the Azure client authenticates: a connection string when set,
// otherwise AccountURL with the default Azure credential chain.
type AzureConfig struct {
	Container        string
	ConnectionString string
	AccountURL       string
	MaxRetries       int32 // 0 uses 3; negative disables retries
}

// Azure keeps documents in an Azure Blob Storage container.
type Azure struct {
	client    *azblob.Client
	container string
	baseURL   string
	logger    *slog.Logger
}

func NewAzure(cfg AzureConfig, logger *slog.Logger) (*Azure, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Container == "" {
		cfg.Container = "invoices"
	}

	var (
		client *azblob.Client
		err    error
	)
	switch {
	case cfg.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, clientOptions(cfg))
	case cfg.AccountURL != "":
		cred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, fmt.Errorf("azure credential: %w", credErr)
		}
		client, err = azblob.NewClient(cfg.AccountURL, cred, clientOptions(cfg))
	default:
		return nil, fmt.Errorf("azure storage needs a connection string or account URL")
	}
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &Azure{
		client:    client,
		container: cfg.Container,
		baseURL:   strings.TrimSuffix(client.URL(), "/") + "/" + cfg.Container + "/",
		logger:    logger.With("system", "storage", "backend", "azure"),
	}, nil
}

func clientOptions(cfg AzureConfig) *azblob.ClientOptions {
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = 3
	}
	return &azblob.ClientOptions{
		ClientOptions: policy.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries: retries,
				TryTimeout: time.Minute,
			},
		},
	}
}

// EnsureContainer creates the container if it does not exist yet.
func (a *Azure) EnsureContainer(ctx context.Context) error {
	_, err := a.client.CreateContainer(ctx, a.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("create container %s: %w", a.container, err)
	}
	a.logger.Info("storage container ready", "container", a.container)
	return nil
}

func (a *Azure) Store(ctx context.Context, data []byte, filename string) (string, error) {
	key := NewKey(filename)
	contentType := constants.ContentType(path.Ext(key))
	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	}
	if _, err := a.client.UploadStream(ctx, a.container, key, bytes.NewReader(data), opts); err != nil {
		return "", fmt.Errorf("upload blob %s: %w", key, err)
	}
	a.logger.Debug("storage.store.ok", "key", key, "bytes", len(data))
	return a.baseURL + key, nil
}

func (a *Azure) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	key, err := KeyFromURL(rawURL)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.DownloadStream(ctx, a.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("download blob %s: %w", key, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return data, nil
}

func (a *Azure) Delete(ctx context.Context, rawURL string) error {
	key, err := KeyFromURL(rawURL)
	if err != nil {
		return err
	}
	if _, err := a.client.DeleteBlob(ctx, a.container, key, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}
