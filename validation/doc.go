// Package validation validates configuration and document structs using
// go-playground/validator tags and reports failures as *errors.AppError.
package validation
