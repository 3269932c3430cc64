package api

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/speakdrill/internal/metrics"
	"github.com/snarg/speakdrill/internal/storage"
)

// maxVideoUpload bounds lesson-video uploads at 256 MiB.
const maxVideoUpload = 256 << 20

// VideosHandler stores uploaded lesson videos and pulls out a
// listening-practice audio track.
type VideosHandler struct {
	store      storage.MediaStore
	transcoder Transcoder
	log        zerolog.Logger
}

func NewVideosHandler(store storage.MediaStore, t Transcoder, log zerolog.Logger) *VideosHandler {
	return &VideosHandler{
		store:      store,
		transcoder: t,
		log:        log.With().Str("handler", "videos").Logger(),
	}
}

func (h *VideosHandler) Routes(r chi.Router) {
	r.Post("/videos", h.Upload)
	r.Get("/media/*", h.ServeMedia)
}

type videoUploadResponse struct {
	VideoKey string  `json:"videoKey"`
	VideoURL string  `json:"videoUrl"`
	AudioKey *string `json:"audioKey"`
	AudioURL *string `json:"audioUrl"`
}

// Upload handles POST /api/v1/videos. The original video is always kept;
// the extracted audio track is best-effort, so a video with no usable audio
// stream still uploads successfully with a null audioUrl.
func (h *VideosHandler) Upload(w http.ResponseWriter, r *http.Request) {
	studentID := StudentFromContext(r.Context())

	if err := r.ParseMultipartForm(maxVideoUpload); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("video")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing video file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read video file")
		return
	}
	if len(data) == 0 {
		WriteError(w, http.StatusBadRequest, "video file is empty")
		return
	}

	keys := storage.NewLessonKeys(studentID, header.Filename)

	// Store the video and extract its audio track concurrently; they are
	// independent and the upload is large.
	var (
		wg       sync.WaitGroup
		saveErr  error
		audio    []byte
		audioErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		saveErr = h.store.Save(r.Context(), keys.Video, data, contentTypeFor(filepath.Ext(keys.Video)))
	}()
	go func() {
		defer wg.Done()
		audio, audioErr = h.transcoder.ExtractAudioTrack(r.Context(), data)
	}()
	wg.Wait()

	if saveErr != nil {
		h.log.Error().Err(saveErr).Str("key", keys.Video).Msg("video save failed")
		WriteError(w, http.StatusInternalServerError, "failed to store video")
		return
	}

	resp := videoUploadResponse{
		VideoKey: keys.Video,
		VideoURL: h.mediaURL(r, keys.Video),
	}

	if audioErr != nil {
		metrics.TranscodesTotal.WithLabelValues("extract_audio", "error").Inc()
		h.log.Warn().Err(audioErr).Str("key", keys.Video).Msg("audio extraction failed; keeping video only")
	} else if err := h.store.Save(r.Context(), keys.Audio, audio, "audio/mpeg"); err != nil {
		h.log.Warn().Err(err).Str("key", keys.Audio).Msg("audio save failed; keeping video only")
	} else {
		metrics.TranscodesTotal.WithLabelValues("extract_audio", "ok").Inc()
		url := h.mediaURL(r, keys.Audio)
		resp.AudioKey = &keys.Audio
		resp.AudioURL = &url
	}

	WriteJSON(w, http.StatusCreated, resp)
}

// mediaURL prefers a presigned URL from the backend; the local store serves
// through this API instead.
func (h *VideosHandler) mediaURL(r *http.Request, key string) string {
	if url, err := h.store.URL(r.Context(), key); err == nil && url != "" {
		return url
	}
	return "/api/v1/media/" + key
}

// ServeMedia handles GET /api/v1/media/* for the local backend. Keys are
// student-prefixed; a student can only read their own objects.
func (h *VideosHandler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	studentID := StudentFromContext(r.Context())

	key := chi.URLParam(r, "*")
	if key == "" || strings.Contains(key, "..") {
		WriteError(w, http.StatusBadRequest, "invalid media key")
		return
	}
	if !strings.HasPrefix(key, studentID+"/") {
		WriteError(w, http.StatusNotFound, "media not found")
		return
	}

	rc, err := h.store.Open(r.Context(), key)
	if err != nil {
		WriteError(w, http.StatusNotFound, "media not found")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentTypeFor(filepath.Ext(key)))
	io.Copy(w, rc)
}

func contentTypeFor(ext string) string {
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
