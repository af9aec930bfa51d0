package picker

import "time"

// Session is one in-flight remote selection interaction. It is created
// at workflow start and deleted remotely at workflow end regardless of
// outcome.
type Session struct {
	// ID is the opaque handle issued by the picker service.
	ID string `json:"id"`

	// PickerURI is the interactive surface the user is handed to.
	PickerURI string `json:"pickerUri"`

	// MediaItemsSet reports whether the user finished selecting.
	// Observed via polling.
	MediaItemsSet bool `json:"mediaItemsSet"`

	// ExpireTime is advisory; the poll loop's own cap bounds the wait.
	ExpireTime time.Time `json:"expireTime"`
}

// MediaItem is one selected asset as reported by the picker service.
type MediaItem struct {
	ID       string `json:"id"`
	BaseURL  string `json:"baseUrl"`
	MimeType string `json:"mimeType"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// sessionResponse is the wire shape of a picker session.
type sessionResponse struct {
	ID            string `json:"id"`
	PickerURI     string `json:"pickerUri"`
	MediaItemsSet bool   `json:"mediaItemsSet"`
	ExpireTime    string `json:"expireTime"`
}

func (r *sessionResponse) toSession() *Session {
	s := &Session{
		ID:            r.ID,
		PickerURI:     r.PickerURI,
		MediaItemsSet: r.MediaItemsSet,
	}
	if r.ExpireTime != "" {
		if t, err := time.Parse(time.RFC3339, r.ExpireTime); err == nil {
			s.ExpireTime = t
		}
	}
	return s
}

// mediaItemResponse is the wire shape of one selected item.
type mediaItemResponse struct {
	ID        string `json:"id"`
	MediaFile struct {
		BaseURL       string `json:"baseUrl"`
		MimeType      string `json:"mimeType"`
		MediaFileMeta struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"mediaFileMetadata"`
	} `json:"mediaFile"`
}

func (r *mediaItemResponse) toMediaItem() MediaItem {
	return MediaItem{
		ID:       r.ID,
		BaseURL:  r.MediaFile.BaseURL,
		MimeType: r.MediaFile.MimeType,
		Width:    r.MediaFile.MediaFileMeta.Width,
		Height:   r.MediaFile.MediaFileMeta.Height,
	}
}
