package webservo

import (
	"fmt"
	"io"
	"math/rand/v2"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

const maxUploadNameAttempts = 8

// bodyDecoder merges the fields and files of a POST body into a parameter set. File parts are streamed
// to the upload directory as they arrive.
type bodyDecoder struct {
	uploadDir    string
	maxFieldSize int64
}

// Decode consumes the whole body of r. It returns only once every part has been observed. Artifacts
// written before a failure stay on disk and remain listed in params.
func (d bodyDecoder) Decode(r *http.Request, params *Params) error {
	ctype := r.Header.Get("Content-Type")
	if ctype == "" {
		return errors.New("missing content type for POST body")
	}

	mediaType, _, err := mime.ParseMediaType(ctype)
	if err != nil {
		return errors.Wrapf(err, "parse content type %q", ctype)
	}

	switch mediaType {
	case "multipart/form-data":
		return d.decodeMultipart(r, params)
	case "application/x-www-form-urlencoded":
		return d.decodeURLEncoded(r, params)
	default:
		return errors.Newf("unsupported content type: %s", mediaType)
	}
}

func (d bodyDecoder) decodeURLEncoded(r *http.Request, params *Params) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, d.maxFieldSize+1))
	if err != nil {
		return errors.Wrap(err, "read urlencoded body")
	}

	if int64(len(raw)) > d.maxFieldSize {
		return errors.Newf("urlencoded body exceeds %d bytes", d.maxFieldSize)
	}

	params.mergeQuery(string(raw))

	return nil
}

func (d bodyDecoder) decodeMultipart(r *http.Request, params *Params) error {
	mr, err := r.MultipartReader()
	if err != nil {
		return errors.Wrap(err, "init multipart reader")
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return errors.Wrap(err, "read next part")
		}

		if err := d.decodePart(part, params); err != nil {
			_ = part.Close()
			return err
		}

		if err := part.Close(); err != nil {
			return errors.Wrapf(err, "close part %q", part.FormName())
		}
	}
}

func (d bodyDecoder) decodePart(part *multipart.Part, params *Params) error {
	field := part.FormName()
	if field == "" {
		return nil // not form data
	}

	if part.FileName() == "" {
		val, err := io.ReadAll(io.LimitReader(part, d.maxFieldSize+1))
		if err != nil {
			return errors.Wrapf(err, "read field %q", field)
		}

		if int64(len(val)) > d.maxFieldSize {
			return errors.Newf("field %q exceeds %d bytes", field, d.maxFieldSize)
		}

		params.Set(field, string(val))

		return nil
	}

	dst, err := d.createUpload(field, part.FileName())
	if err != nil {
		return err
	}

	// the artifact is registered as soon as it exists so a later failure still reports it
	params.SetUpload(field, dst.Name())

	if _, err := io.Copy(dst, part); err != nil {
		_ = dst.Close()
		return errors.Wrapf(err, "write upload for field %q", field)
	}

	if err := dst.Close(); err != nil {
		return errors.Wrapf(err, "close upload for field %q", field)
	}

	return nil
}

// createUpload opens a fresh file named after the field, a random number and the client's file name.
func (d bodyDecoder) createUpload(field, filename string) (*os.File, error) {
	dir := d.uploadDir
	if dir == "" {
		dir = os.TempDir()
	}

	for range maxUploadNameAttempts {
		name := fmt.Sprintf("%s_%d_%s", filepath.Base(field), rand.Int64N(1e10), filepath.Base(filename)) //nolint:gosec
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, os.ErrExist) {
			continue
		} else if err != nil {
			return nil, errors.Wrapf(err, "create upload for field %q", field)
		}

		return f, nil
	}

	return nil, errors.Newf("no free upload name for field %q after %d attempts", field, maxUploadNameAttempts)
}
