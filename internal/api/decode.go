package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/freshmart/grocery-store/internal/models"
	"github.com/freshmart/grocery-store/internal/services"
	"github.com/freshmart/grocery-store/internal/storage"
	"github.com/go-playground/form/v4"
	"github.com/shopspring/decimal"
)

const (
	maxFormMemory = 8 << 20
	maxBodyBytes  = 10 << 20
)

var formDecoder = newFormDecoder()

// conversionMessages describes form fields whose value has the wrong type.
var conversionMessages = map[string]string{
	"user_id":        "must be an integer",
	"stock":          "must be an integer",
	"price":          "must be a number",
	"original_price": "must be a number",
}

// isForm reports whether the request carries form fields rather than JSON
func isForm(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "multipart/form-data" || mt == "application/x-www-form-urlencoded"
}

func parseForm(r *http.Request) error {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if mt == "multipart/form-data" {
		err = r.ParseMultipartForm(maxFormMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", services.ErrMalformedInput, err)
	}
	return nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", services.ErrMalformedInput)
		}
		return fmt.Errorf("%w: %v", services.ErrMalformedInput, err)
	}
	return nil
}

// decodePlaceOrder reads a checkout request from JSON or form fields. In a
// form, items is a JSON-encoded list and shipping_address may be a JSON object.
func decodePlaceOrder(w http.ResponseWriter, r *http.Request) (models.PlaceOrderRequest, error) {
	var req models.PlaceOrderRequest
	if !isForm(r) {
		err := decodeJSON(w, r, &req)
		return req, err
	}

	if err := parseForm(r); err != nil {
		return req, err
	}

	fields, err := bindForm(&req, r.PostForm)
	if err != nil {
		return req, err
	}

	if address := strings.TrimSpace(string(req.ShippingAddress)); strings.HasPrefix(address, "{") {
		if err := json.Unmarshal([]byte(address), &req.ShippingAddress); err != nil {
			return req, fmt.Errorf("%w: shipping_address: %v", services.ErrMalformedInput, err)
		}
	}

	if encoded := r.PostFormValue("items"); encoded != "" {
		items, err := models.DecodeOrderLines(encoded)
		if err != nil {
			return req, fmt.Errorf("%w: %v", services.ErrMalformedInput, err)
		}
		req.Items = items
	}

	if len(fields) > 0 {
		return req, services.WithFieldErrors(fields, services.ValidatePlaceOrder(req))
	}
	return req, nil
}

// decodeProductInput reads catalog input from JSON or form fields, together
// with an optional uploaded image. The caller closes the upload. create
// selects the rules reported alongside form fields that fail to convert.
func decodeProductInput(w http.ResponseWriter, r *http.Request, create bool) (models.ProductInput, *uploadedFile, error) {
	var in models.ProductInput
	if !isForm(r) {
		err := decodeJSON(w, r, &in)
		return in, nil, err
	}

	if err := parseForm(r); err != nil {
		return in, nil, err
	}

	fields, err := bindForm(&in, r.PostForm)
	if err != nil {
		return in, nil, err
	}
	in.AboutProduct = aboutProduct(r.PostForm, in.AboutProduct)

	upload, err := formImage(r)
	if err != nil {
		return in, nil, err
	}

	if len(fields) > 0 {
		upload.Close()
		return in, nil, services.WithFieldErrors(fields, services.ValidateProductInput(in, create))
	}
	return in, upload, nil
}

func newFormDecoder() *form.Decoder {
	d := form.NewDecoder()
	// Blank money fields are left unset, like every other blank form field.
	d.RegisterCustomTypeFunc(func(vals []string) (interface{}, error) {
		raw := strings.TrimSpace(vals[0])
		if raw == "" {
			return (*decimal.Decimal)(nil), nil
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, err
		}
		return &v, nil
	}, (*decimal.Decimal)(nil))
	return d
}

// bindForm decodes form values into dst. Fields that fail to convert are
// returned as field errors; any other failure means the form is malformed.
func bindForm(dst interface{}, values url.Values) ([]services.FieldError, error) {
	err := formDecoder.Decode(dst, values)
	if err == nil {
		return nil, nil
	}

	var derrs form.DecodeErrors
	if !errors.As(err, &derrs) {
		return nil, fmt.Errorf("%w: %v", services.ErrMalformedInput, err)
	}

	fields := make([]services.FieldError, 0, len(derrs))
	for name := range derrs {
		msg, ok := conversionMessages[name]
		if !ok {
			msg = "is invalid"
		}
		fields = append(fields, services.FieldError{Field: name, Message: msg})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return fields, nil
}

// aboutProduct accepts a single about_product value holding a JSON list or a
// comma-separated string, or indexed about_product[N] entries, which the form
// decoder has already placed in order. Blank entries are dropped.
func aboutProduct(values url.Values, decoded models.StringList) models.StringList {
	if decoded == nil {
		return nil
	}
	if plain := values["about_product"]; len(plain) == 1 && len(decoded) == 1 {
		raw := strings.TrimSpace(plain[0])
		if strings.HasPrefix(raw, "[") {
			var list models.StringList
			if err := json.Unmarshal([]byte(raw), &list); err == nil {
				return list
			}
		}
		return models.SplitList(raw)
	}

	list := models.StringList{}
	for _, v := range decoded {
		if v = strings.TrimSpace(v); v != "" {
			list = append(list, v)
		}
	}
	return list
}

// uploadedFile is a multipart image held open until the handler is done.
// A nil *uploadedFile means no image was sent.
type uploadedFile struct {
	file   multipart.File
	upload *storage.Upload
}

func (u *uploadedFile) Upload() *storage.Upload {
	if u == nil {
		return nil
	}
	return u.upload
}

func (u *uploadedFile) Close() {
	if u != nil {
		u.file.Close()
	}
}

func formImage(r *http.Request) (*uploadedFile, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: image: %v", services.ErrMalformedInput, err)
	}
	return &uploadedFile{
		file:   file,
		upload: &storage.Upload{Filename: header.Filename, Size: header.Size, Body: file},
	}, nil
}
