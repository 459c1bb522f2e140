package handler

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/knowwell/portal-api/internal/model"
)

// RegisterValidators installs the custom binding rules used by request
// payloads. Call once at startup.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("knowledgelevel", func(fl validator.FieldLevel) bool {
			_, err := model.ParseKnowledgeLevel(fl.Field().String())
			return err == nil
		})
	}
}
