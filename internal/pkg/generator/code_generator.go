package generator

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type CodeGenerator struct{}

func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{}
}

func (g *CodeGenerator) GenerateSaleID() string {
	return fmt.Sprintf("fs-%s", compact(uuid.New()))
}

func (g *CodeGenerator) GenerateProductID() string {
	return fmt.Sprintf("fsp-%s", compact(uuid.New()))
}

func (g *CodeGenerator) GenerateReceiptID() string {
	return fmt.Sprintf("rcpt-%s", compact(uuid.New()))
}

func (g *CodeGenerator) GenerateEventID() string {
	return uuid.NewString()
}

func (g *CodeGenerator) GenerateRequestID() string {
	return uuid.NewString()
}

func compact(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")
}
