package dto

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// DateLayout 排期日期格式
const DateLayout = "2006-01-02"

// RegisterValidators 向 gin 绑定引擎注册自定义校验规则
//   - isodate: YYYY-MM-DD 日历日期，空串放行（表示清除）
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("gin 校验引擎类型不符: %T", binding.Validator.Engine())
	}
	return v.RegisterValidation("isodate", isISODate)
}

func isISODate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
