package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/agenthands/amane/pkg/attributes"
	"github.com/agenthands/amane/pkg/cidutil"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/ipfs/go-cid"
	"go.uber.org/zap"
)

// PutResult is the data of a successful upload.
type PutResult struct {
	ETag string            `json:"etag"`
	Meta map[string]string `json:"meta"`
}

func (s *Server) health(c *gin.Context) {
	respondOK(c, "healthy")
}

// objectKey strips the leading slash gin keeps on catch-all parameters.
func objectKey(c *gin.Context, param string) string {
	return strings.TrimPrefix(c.Param(param), "/")
}

func (s *Server) getObject(c *gin.Context) {
	key := objectKey(c, "key")
	if key == "" {
		respondStatus(c, http.StatusBadRequest)
		return
	}

	data, attrs, err := s.store.Bucket(c.Param("bucket")).GetObject(c.Request.Context(), key)
	if err != nil {
		respondError(c, err)
		return
	}
	oid, err := s.cids.ObjectCID(data)
	if err != nil {
		respondError(c, err)
		return
	}

	s.writeObjectHeaders(c, oid, attrs)
	if notModified(c, oid) {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, mimetype.Detect(data).String(), data)
}

func (s *Server) headObject(c *gin.Context) {
	key := objectKey(c, "key")
	if key == "" {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	info, err := s.store.Bucket(c.Param("bucket")).Stat(c.Request.Context(), key)
	if err != nil {
		_ = c.Error(err)
		c.AbortWithStatus(statusOf(err))
		return
	}

	s.writeObjectHeaders(c, info.CID, info.Attributes)
	if notModified(c, info.CID) {
		c.Status(http.StatusNotModified)
		return
	}
	c.Header("Content-Length", strconv.FormatInt(info.Size, 10))
	c.Status(http.StatusOK)
}

func (s *Server) putObject(c *gin.Context) {
	key := objectKey(c, "key")
	if key == "" || strings.HasSuffix(key, "/") {
		respondStatus(c, http.StatusBadRequest)
		return
	}

	data, status := s.readUpload(c)
	if status != http.StatusOK {
		respondStatus(c, status)
		return
	}

	ctx := c.Request.Context()
	b := s.store.Bucket(c.Param("bucket"))
	if err := b.PutObject(ctx, key, data); err != nil {
		respondError(c, err)
		return
	}

	res := PutResult{Meta: map[string]string{}}
	if meta := s.metaFromHeaders(c.Request.Header); len(meta) > 0 {
		attrs, err := b.UpdateMeta(ctx, key, meta)
		if err != nil {
			respondError(c, err)
			return
		}
		res.Meta = attrs.Meta
	}

	oid, err := s.cids.ObjectCID(data)
	if err != nil {
		respondError(c, err)
		return
	}
	res.ETag = cidutil.ETag(oid)
	c.Header("ETag", res.ETag)
	respondOK(c, res)
}

// readUpload returns the bytes of the configured multipart field, or the
// status to answer with.
func (s *Server) readUpload(c *gin.Context) ([]byte, int) {
	mr, err := c.Request.MultipartReader()
	if err != nil {
		return nil, http.StatusBadRequest
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, http.StatusBadRequest
		}
		if err != nil {
			s.log.Debug("malformed multipart body", zap.String("request_id", GetRequestID(c)), zap.Error(err))
			return nil, http.StatusBadRequest
		}
		if part.FormName() != s.cfg.FileField {
			part.Close()
			continue
		}
		return s.readPart(part)
	}
}

func (s *Server) readPart(part *multipart.Part) ([]byte, int) {
	defer part.Close()

	var r io.Reader = part
	if s.cfg.MaxObjectBytes > 0 {
		r = io.LimitReader(part, s.cfg.MaxObjectBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, http.StatusBadRequest
	}
	if s.cfg.MaxObjectBytes > 0 && int64(len(data)) > s.cfg.MaxObjectBytes {
		return nil, http.StatusRequestEntityTooLarge
	}
	return data, http.StatusOK
}

func (s *Server) deleteObject(c *gin.Context) {
	key := objectKey(c, "key")
	if key == "" {
		respondStatus(c, http.StatusBadRequest)
		return
	}
	if err := s.store.Bucket(c.Param("bucket")).DeleteObject(c.Request.Context(), key); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

func (s *Server) search(c *gin.Context) {
	keys, err := s.store.Bucket(c.Param("bucket")).ListObjects(c.Request.Context(), objectKey(c, "prefix"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, keys)
}

// metaFromHeaders collects headers named <prefix><name>. Names are matched
// and returned lower-case; the first value wins.
func (s *Server) metaFromHeaders(h http.Header) map[string]string {
	meta := map[string]string{}
	for name, values := range h {
		lower := strings.ToLower(name)
		if !strings.HasPrefix(lower, s.cfg.MetaPrefix) || len(lower) == len(s.cfg.MetaPrefix) || len(values) == 0 {
			continue
		}
		meta[lower[len(s.cfg.MetaPrefix):]] = values[0]
	}
	return meta
}

func (s *Server) writeObjectHeaders(c *gin.Context, oid cid.Cid, attrs *attributes.Attributes) {
	c.Header("ETag", cidutil.ETag(oid))
	if attrs == nil {
		return
	}
	for k, v := range attrs.Meta {
		c.Header(s.cfg.MetaPrefix+k, v)
	}
}

// notModified reports whether If-None-Match names oid or is "*".
func notModified(c *gin.Context, oid cid.Cid) bool {
	header := c.GetHeader("If-None-Match")
	if header == "" {
		return false
	}
	for _, tag := range strings.Split(header, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" {
			return true
		}
		if parsed, err := cidutil.Parse(tag); err == nil && parsed.Equals(oid) {
			return true
		}
	}
	return false
}
