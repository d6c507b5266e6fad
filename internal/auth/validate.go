package auth

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/nao1215/overclockart/pkg/token"
)

func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	err := v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return token.ValidSubject(fl.Field().String())
	})
	if err != nil {
		panic(err)
	}
}
