package http

import (
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jhoicas/agrosoft-api/internal/domain"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Reportar los campos con su nombre JSON.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// decimal.Decimal se valida por su representación en texto.
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		if d, ok := f.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("decimal_scale", decimalScale)
	return v
}

// decimalScale verifica que el decimal no tenga más decimales que los indicados en el parámetro.
func decimalScale(fl validator.FieldLevel) bool {
	places, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return d.Equal(d.Truncate(int32(places)))
}

// validateRequest aplica las etiquetas validate del DTO y devuelve *domain.ValidationError por campo.
func validateRequest(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = fieldMessage(fe)
	}
	return &domain.ValidationError{Fields: fields}
}

// fieldPath quita el nombre del struct raíz: "CreateActivityRequest.insumos[0].insumo_id" -> "insumos[0].insumo_id".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "es requerido"
	case "gt":
		return "debe ser mayor que " + fe.Param()
	case "gtefield":
		return "debe ser posterior o igual a " + strings.ToLower(fe.Param())
	case "oneof":
		return "debe ser uno de: " + fe.Param()
	case "decimal_scale":
		return "admite hasta " + fe.Param() + " decimales"
	case "max":
		return "longitud máxima " + fe.Param()
	case "min":
		return "longitud mínima " + fe.Param()
	default:
		return "inválido (" + fe.Tag() + ")"
	}
}

// bodyError convierte un error de decodificación del body en ValidationError.
// Un tipo JSON incorrecto (p. ej. usuarios que no es un arreglo) se reporta en su campo.
func bodyError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return domain.NewValidationError(typeErr.Field, "debe ser de tipo "+jsonType(typeErr.Type))
	}
	return domain.NewValidationError("body", "JSON inválido")
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return "arreglo"
	case reflect.String:
		return "texto"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "número"
	case reflect.Bool:
		return "booleano"
	case reflect.Ptr:
		return jsonType(t.Elem())
	default:
		return "objeto"
	}
}
