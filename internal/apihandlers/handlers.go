// Package apihandlers exposes the engine over HTTP: job creation and
// polling, cancellation, metadata probes, and streamed media downloads.
package apihandlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"tubescribe/internal/jobs"
	"tubescribe/internal/models"
	"tubescribe/internal/ytdlp"
)

// Handler carries the dependencies the route handlers need.
type Handler struct {
	svc         *jobs.Service
	cookiesFile string
	started     time.Time
}

// New builds the handler set.
func New(svc *jobs.Service, cookiesFile string) *Handler {
	return &Handler{svc: svc, cookiesFile: cookiesFile, started: time.Now()}
}

// Register mounts every route on the router group.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/ping", h.ping)
	r.GET("/validate-cookies", h.validateCookies)
	r.GET("/info", h.info)

	r.POST("/transcript", h.createTranscript)
	r.GET("/transcript", h.createTranscript)
	r.GET("/progress/:id", h.progress)
	r.GET("/result/:id", h.result)
	r.POST("/cancel/:id", h.cancel)

	r.GET("/mp3", h.streamMedia(jobs.MediaMP3))
	r.GET("/mp4", h.streamMedia(jobs.MediaMP4))
}

const version = "1.2.0"

func (h *Handler) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *Handler) validateCookies(c *gin.Context) {
	report := ytdlp.ValidateCookiesFile(h.cookiesFile)
	c.JSON(http.StatusOK, gin.H{
		"exists":          report.Exists,
		"netscape_format": report.NetscapeFormat,
		"has_domain":      report.HasDomain,
		"has_auth":        report.HasAuth,
		"size":            report.Size,
		"valid":           report.Valid(),
	})
}

// info probes subject metadata. type=full returns the tool's raw
// document; the default is a compact summary.
func (h *Handler) info(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		badRequest(c, "missing url parameter")
		return
	}

	info, err := h.svc.Info(c.Request.Context(), rawURL)
	if err != nil {
		upstreamError(c, err)
		return
	}

	if c.Query("type") == "full" {
		c.Data(http.StatusOK, "application/json", info.Raw)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":            info.ID,
		"title":         info.Title,
		"channel":       info.Channel,
		"channel_id":    info.ChannelID,
		"duration":      info.Duration,
		"language":      info.Language,
		"upload_date":   info.UploadDate,
		"caption_langs": info.AvailableLanguages(),
	})
}

type transcriptRequest struct {
	URL    string `json:"url" form:"url"`
	Lang   string `json:"lang" form:"lang"`
	SkipAI bool   `json:"skipAI" form:"skipAI"`
	Model  string `json:"model" form:"model"`
}

// createTranscript validates synchronously and answers 202 with the
// polling endpoints; all real work happens on the queue.
func (h *Handler) createTranscript(c *gin.Context) {
	var req transcriptRequest
	if err := c.ShouldBind(&req); err != nil || req.URL == "" {
		req.URL = c.Query("url")
		req.Lang = c.Query("lang")
		req.SkipAI = c.Query("skipAI") == "true"
		req.Model = c.Query("model")
	}
	if req.URL == "" {
		badRequest(c, "missing url parameter")
		return
	}

	job, err := h.svc.StartTranscript(req.URL, jobs.TranscriptOptions{
		Lang:   req.Lang,
		SkipAI: req.SkipAI,
		Model:  req.Model,
	})
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"processingId":     job.ID,
		"status":           job.Status,
		"progressEndpoint": fmt.Sprintf("/progress/%s", job.ID),
		"resultEndpoint":   fmt.Sprintf("/result/%s", job.ID),
	})
}

func (h *Handler) progress(c *gin.Context) {
	job, err := h.svc.Job(c.Param("id"))
	if err != nil {
		notFound(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"processingId": job.ID,
		"status":       job.Status,
		"progress":     job.Progress,
		"video_id":     job.SubjectID,
		"video_title":  job.SubjectTitle,
		"updatedAt":    job.LastUpdated,
	})
}

// result answers 202 while the job is live, the success payload once
// completed, and the structured error for failed or canceled jobs.
func (h *Handler) result(c *gin.Context) {
	job, err := h.svc.Job(c.Param("id"))
	if err != nil {
		notFound(c, err)
		return
	}

	if !job.Status.IsTerminal() {
		c.JSON(http.StatusAccepted, gin.H{
			"processingId": job.ID,
			"status":       job.Status,
			"progress":     job.Progress,
		})
		return
	}

	switch {
	case job.Result != nil && job.Result.Success:
		c.JSON(http.StatusOK, gin.H{
			"processingId": job.ID,
			"status":       job.Status,
			"result":       job.Result.Transcript,
		})
	case job.Status == models.JobStatusCanceled:
		c.JSON(http.StatusOK, gin.H{
			"processingId": job.ID,
			"status":       job.Status,
		})
	default:
		body := gin.H{
			"processingId": job.ID,
			"status":       job.Status,
		}
		if job.Result != nil && job.Result.Err != nil {
			body["error"] = job.Result.Err
		}
		c.JSON(http.StatusOK, body)
	}
}

func (h *Handler) cancel(c *gin.Context) {
	out, err := h.svc.Cancel(c.Param("id"))
	if err != nil {
		notFound(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"processingId":     c.Param("id"),
		"status":           out.Status,
		"alreadyTerminal":  out.AlreadyTerminal,
		"cleanedArtifacts": out.CleanedArtifacts,
		"queueDepth":       out.QueueDepth,
	})
}

// streamMedia pipes the download straight to the response body. Job
// identity travels in headers since the body is the payload itself.
func (h *Handler) streamMedia(kind jobs.MediaKind) gin.HandlerFunc {
	contentType := "audio/mpeg"
	if kind == jobs.MediaMP4 {
		contentType = "video/mp4"
	}

	return func(c *gin.Context) {
		rawURL := c.Query("url")
		if rawURL == "" {
			badRequest(c, "missing url parameter")
			return
		}

		stream, err := h.svc.StartMediaStream(c.Request.Context(), rawURL, kind, c.Writer)
		if err != nil {
			upstreamError(c, err)
			return
		}

		title := sanitizeHeader(stream.Info.Title)
		c.Header("Content-Type", contentType)
		c.Header("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", title+"."+string(kind)))
		c.Header("X-Processing-Id", stream.Job.ID)
		c.Header("X-Video-Id", stream.Info.ID)
		c.Header("X-Video-Title", title)
		c.Status(http.StatusOK)

		final := stream.Wait()
		if final.Status != models.JobStatusCompleted {
			// Headers are long gone; the truncated body is the signal.
			log.WithFields(log.Fields{"job_id": final.ID, "status": final.Status}).
				Warn("Media stream ended unsuccessfully")
		}
	}
}

// sanitizeHeader reduces a title to printable ASCII for HTTP headers.
func sanitizeHeader(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 0x20 && r <= 0x7e {
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		out = "download"
	}
	return out
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func notFound(c *gin.Context, err error) {
	if errors.Is(err, models.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func upstreamError(c *gin.Context, err error) {
	if errors.Is(err, jobs.ErrInvalidURL) {
		badRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}
