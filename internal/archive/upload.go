package archive

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// Destination is a parsed container URL.
type Destination struct {
	// ServiceURL is the account endpoint, including the SAS query when one
	// was given.
	ServiceURL string
	Container  string
	// Prefix is prepended to blob names. It is taken from any path below the
	// container in the URL.
	Prefix string
	HasSAS bool
}

// ParseDestination parses a container URL such as
// https://account.blob.core.windows.net/runs?sv=...&sig=...
func ParseDestination(containerURL string) (*Destination, error) {
	parts, err := azblob.ParseURL(containerURL)
	if err != nil {
		return nil, fmt.Errorf("parsing container URL: %w", err)
	}
	if parts.Host == "" || parts.ContainerName == "" {
		return nil, fmt.Errorf("container URL %q must name an account host and a container", containerURL)
	}

	d := &Destination{
		Container: parts.ContainerName,
		Prefix:    parts.BlobName,
		HasSAS:    parts.SAS.Signature() != "",
	}
	if d.Prefix != "" && d.Prefix[len(d.Prefix)-1] != '/' {
		d.Prefix += "/"
	}

	parts.ContainerName = ""
	parts.BlobName = ""
	d.ServiceURL = parts.String()
	return d, nil
}

// BlobName returns the full name of a blob uploaded as name.
func (d *Destination) BlobName(name string) string {
	return d.Prefix + name
}

// Uploader uploads archives to Azure Blob Storage. The zero value talks to
// Azure directly and loads credentials from azidentity.DefaultAzureCredential.
type Uploader struct {
	// Transport replaces the HTTP transport of the blob client when set.
	Transport policy.Transporter
	// Credential is used instead of DefaultAzureCredential for URLs without
	// a SAS token.
	Credential azcore.TokenCredential
}

// Upload streams r to a blob called name in the container at containerURL
// with a zero Uploader.
func Upload(ctx context.Context, containerURL, name string, r io.Reader) (string, error) {
	var u Uploader
	return u.Upload(ctx, containerURL, name, r)
}

// Upload streams r to a blob called name in the container at containerURL.
// A SAS token in the URL is used when present; otherwise the request is
// authorized with a bearer token from the Uploader's credential.
func (u *Uploader) Upload(ctx context.Context, containerURL, name string, r io.Reader) (string, error) {
	dest, err := ParseDestination(containerURL)
	if err != nil {
		return "", err
	}
	client, err := u.newClient(dest)
	if err != nil {
		return "", err
	}

	blob := dest.BlobName(name)
	if _, err := client.UploadStream(ctx, dest.Container, blob, r, nil); err != nil {
		return "", fmt.Errorf("uploading %s: %w", blob, err)
	}
	return dest.Container + "/" + blob, nil
}

func (u *Uploader) newClient(dest *Destination) (*azblob.Client, error) {
	opts := &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries: 3,
				RetryDelay: 2 * time.Second,
			},
			Transport: u.Transport,
		},
	}

	if dest.HasSAS {
		client, err := azblob.NewClientWithNoCredential(dest.ServiceURL, opts)
		if err != nil {
			return nil, fmt.Errorf("creating blob client: %w", err)
		}
		return client, nil
	}

	cred := u.Credential
	if cred == nil {
		dac, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("loading Azure credentials: %w", err)
		}
		cred = dac
	}
	client, err := azblob.NewClient(dest.ServiceURL, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("creating blob client: %w", err)
	}
	return client, nil
}
