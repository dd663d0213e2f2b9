package pdfparse

import (
	"strings"
	"testing"
)

func TestExtractItemsCanonical(t *testing.T) {
	items := ExtractItems("00815 / CABO TURBO V8 --> 1 METRO / UN / 200 / 4,00 / 800,00")
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	it := items[0]
	if it.ProductCode != "00815" {
		t.Errorf("ProductCode = %q", it.ProductCode)
	}
	if it.ProductReference != "CABO TURBO V8" {
		t.Errorf("ProductReference = %q", it.ProductReference)
	}
	if it.ProductName != "CABO TURBO V8 - 1 METRO" {
		t.Errorf("ProductName = %q", it.ProductName)
	}
	if it.Quantity != 200 || it.UnitPrice != 4.0 || it.TotalPrice != 800.0 {
		t.Errorf("numbers = %d %.2f %.2f", it.Quantity, it.UnitPrice, it.TotalPrice)
	}
}

func TestExtractItemsWithoutDescription(t *testing.T) {
	items := ExtractItems("00816 / CARREGADOR SIMPLES / UN / 10 / 5,00 / 50,00")
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].ProductName != "CARREGADOR SIMPLES" {
		t.Errorf("ProductName = %q", items[0].ProductName)
	}
}

func TestExtractItemsWithFiller(t *testing.T) {
	items := ExtractItems("00817 / PELICULA --> 3D / AZUL / UN / 5 / 2,00 / 10,00")
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].ProductName != "PELICULA - 3D (AZUL)" {
		t.Errorf("ProductName = %q", items[0].ProductName)
	}
	if items[0].ProductReference != "PELICULA" {
		t.Errorf("ProductReference = %q", items[0].ProductReference)
	}
}

func TestExtractItemsDamagedUnitMarker(t *testing.T) {
	items := ExtractItems("03242 / FONE/<<UN / 100 / 7,80 / 780,00")
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].ProductCode != "03242" || items[0].ProductReference != "FONE" {
		t.Errorf("item = %+v", items[0])
	}
	if items[0].Quantity != 100 || items[0].UnitPrice != 7.8 {
		t.Errorf("numbers = %d %.2f", items[0].Quantity, items[0].UnitPrice)
	}
}

func TestExtractItemsLegacyShortCode(t *testing.T) {
	items := ExtractItems("815 / CABO ANTIGO / UN / 2 / 1,00 / 2,00")
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].ProductCode != "815" {
		t.Errorf("ProductCode = %q", items[0].ProductCode)
	}
}

func TestExtractItemsMultipleInOrder(t *testing.T) {
	text := strings.Join([]string{
		"00815 / CABO TURBO V8 --> 1 METRO / UN / 200 / 4,00 / 800,00",
		"03242 / FONE DE OUVIDO KAPBOM / UN / 100 / 7,80 / 780,00",
		"00852 / CARREGADOR TURBO V8 / UN / 100 / 5,00 / 500,00",
	}, "\n")
	items := ExtractItems(text)
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	wantCodes := []string{"00815", "03242", "00852"}
	for i, code := range wantCodes {
		if items[i].ProductCode != code {
			t.Errorf("items[%d].ProductCode = %q, want %q", i, items[i].ProductCode, code)
		}
	}
}

func TestExtractItemsDedupeFirstWins(t *testing.T) {
	text := "00815 / CABO UM / UN / 1 / 1,00 / 1,00\n00815 / CABO DOIS / UN / 2 / 2,00 / 4,00"
	items := ExtractItems(text)
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].ProductReference != "CABO UM" || items[0].Quantity != 1 {
		t.Errorf("item = %+v", items[0])
	}
}

func TestExtractItemsRejectsSuspicious(t *testing.T) {
	cases := []string{
		"07 / Código Produto Unid. Quant. / UN / 1 / 1,00 / 1,00",
		"00818 / Valor Total geral / UN / 1 / 1,00 / 1,00",
		"00819 / FONE BOM / UN / 0 / 1,00 / 1,00",
		"00820 / X / UN / 1 / 1,00 / 1,00",
	}
	for _, text := range cases {
		if items := ExtractItems(text); len(items) != 0 {
			t.Errorf("ExtractItems(%q) = %+v, want none", text, items)
		}
	}
}

func TestExtractItemsEmptyText(t *testing.T) {
	if items := ExtractItems(""); len(items) != 0 {
		t.Errorf("items = %d, want 0", len(items))
	}
}
