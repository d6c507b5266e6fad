package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/nao1215/overclockart/pkg/token"
)

func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	// 検証エラーのフィールド名をJSONの名前で報告する。
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("username", validUsername); err != nil {
		panic(err)
	}
}

// validUsername はusernameタグの検証関数。
func validUsername(fl validator.FieldLevel) bool {
	return token.ValidSubject(fl.Field().String())
}

// bindBody はリクエストボディをJSONとして読み込み、検証する。
func bindBody(c *gin.Context, dst any) *Error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return bindError(err)
	}
	return nil
}

// bindError はボディの読み込みまたは検証のエラーをBadRequestに変換する。
func bindError(err error) *Error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
			msgs = append(msgs, describe(fe))
		}
		return BadRequest("invalid request: "+strings.Join(msgs, "; "), fields...)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return BadRequest(fmt.Sprintf("invalid request: %s must be a %s", typeErr.Field, jsonType(typeErr.Type)), typeErr.Field)
	}

	if errors.Is(err, io.EOF) {
		return BadRequest("request body is required")
	}
	return BadRequest("malformed JSON body")
}

// describe は1件の検証エラーをメッセージにする。
func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "username":
		return fmt.Sprintf("%s must be 1-%d bytes without surrounding spaces or control characters", fe.Field(), token.MaxSubjectLength)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag())
	}
}

// jsonType はGoの型をJSONの型名で表す。
func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.String:
		return "string"
	default:
		return t.Kind().String()
	}
}

// positiveID はパスパラメータを正の整数として読み込む。
func positiveID(c *gin.Context, name string) (int64, *Error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, BadRequest(fmt.Sprintf("invalid request: %s must be a positive integer", name), name)
	}
	return id, nil
}
