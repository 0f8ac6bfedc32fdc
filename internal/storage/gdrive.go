package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// DriveArchiver uploads reports into dated folders on Google Drive:
// {folder}/{yyyy}/{mm}/{dd}/{timestamp}_{name}/...
type DriveArchiver struct {
	service  *drive.Service
	folderID string
}

// NewDriveArchiver authorizes with the OAuth client in credentialsFile. The
// token is cached in tokenFile; without one the user is prompted on stdin.
func NewDriveArchiver(ctx context.Context, credentialsFile, tokenFile, folderName string) (*DriveArchiver, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	client, err := oauthClient(ctx, config, tokenFile)
	if err != nil {
		return nil, err
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %w", err)
	}

	da := &DriveArchiver{service: srv}
	da.folderID, err = da.findOrCreateFolder(ctx, folderName, "")
	if err != nil {
		return nil, fmt.Errorf("unable to prepare root folder: %w", err)
	}
	return da, nil
}

func oauthClient(ctx context.Context, config *oauth2.Config, tokenFile string) (*http.Client, error) {
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		tok, err = tokenFromWeb(ctx, config, os.Stdin)
		if err != nil {
			return nil, err
		}
		if err := saveToken(tokenFile, tok); err != nil {
			return nil, err
		}
	}
	return config.Client(ctx, tok), nil
}

func tokenFromWeb(ctx context.Context, config *oauth2.Config, in io.Reader) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser:\n%v\n", authURL)
	fmt.Print("Enter authorization code: ")

	var authCode string
	if _, err := fmt.Fscan(in, &authCode); err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}
	tok, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// Archive uploads every file in item plus a summary JSON and returns the
// link of the first uploaded file.
func (da *DriveArchiver) Archive(ctx context.Context, item ArchiveItem) (string, error) {
	now := item.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	dayID, err := da.ensureDateFolder(ctx, now)
	if err != nil {
		return "", err
	}
	folderName := fmt.Sprintf("%s_%s", now.Format("20060102_150405"), sanitizeFilename(item.Name))
	folderID, err := da.findOrCreateFolder(ctx, folderName, dayID)
	if err != nil {
		return "", err
	}

	var firstID string
	for _, path := range item.Files {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		created, err := da.upload(ctx, filepath.Base(path), folderID, content)
		if err != nil {
			return "", fmt.Errorf("failed to upload %s: %w", filepath.Base(path), err)
		}
		if firstID == "" {
			firstID = created
		}
	}

	meta, err := item.summaryJSON()
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary: %w", err)
	}
	metaID, err := da.upload(ctx, "summary.json", folderID, meta)
	if err != nil {
		return "", fmt.Errorf("failed to upload summary: %w", err)
	}
	if firstID == "" {
		firstID = metaID
	}

	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", firstID), nil
}

func (da *DriveArchiver) upload(ctx context.Context, name, parentID string, content []byte) (string, error) {
	f := &drive.File{Name: name, Parents: []string{parentID}}
	created, err := da.service.Files.Create(f).Media(bytes.NewReader(content)).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return created.Id, nil
}

func (da *DriveArchiver) ensureDateFolder(ctx context.Context, t time.Time) (string, error) {
	parent := da.folderID
	for _, name := range []string{fmt.Sprintf("%d", t.Year()), fmt.Sprintf("%02d", t.Month()), fmt.Sprintf("%02d", t.Day())} {
		id, err := da.findOrCreateFolder(ctx, name, parent)
		if err != nil {
			return "", err
		}
		parent = id
	}
	return parent, nil
}

func driveQuote(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `'`, `\'`)
}

// findOrCreateFolder finds or creates a folder; an empty parentID means the
// Drive root.
func (da *DriveArchiver) findOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	query := fmt.Sprintf("name='%s' and mimeType='application/vnd.google-apps.folder' and trashed=false", driveQuote(name))
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", driveQuote(parentID))
	}

	r, err := da.service.Files.List().Q(query).Spaces("drive").Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to search for folder %q: %w", name, err)
	}
	if len(r.Files) > 0 {
		return r.Files[0].Id, nil
	}

	folder := &drive.File{Name: name, MimeType: "application/vnd.google-apps.folder"}
	if parentID != "" {
		folder.Parents = []string{parentID}
	}
	file, err := da.service.Files.Create(folder).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create folder %q: %w", name, err)
	}
	return file.Id, nil
}
