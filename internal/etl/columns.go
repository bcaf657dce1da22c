package etl

import (
	"fmt"
	"strings"
)

// Field is a logical column resolved through an ordered alias list.
type Field string

const (
	FieldCNES         Field = "cnes_id"
	FieldRazaoSocial  Field = "razao_social"
	FieldNomeFantasia Field = "nome_fantasia"
	FieldTipoUnidade  Field = "tipo_unidade"
	FieldLogradouro   Field = "logradouro"
	FieldNumero       Field = "numero"
	FieldComplemento  Field = "complemento"
	FieldBairro       Field = "bairro"
	FieldCEP          Field = "cep"
	FieldMunicipio    Field = "municipio"
	FieldCodMunicipio Field = "cod_municipio"
	FieldUF           Field = "uf"
	FieldTelefone     Field = "telefone"
	FieldLatitude     Field = "lat"
	FieldLongitude    Field = "lon"
	FieldEsferaAdm    Field = "esfera_adm"
	FieldNatJurCode   Field = "natjur_code"
	FieldNatJurText   Field = "natjur_text"
	FieldSUS          Field = "atende_sus"
	FieldSUSAlt       Field = "atende_sus_alt"
	FieldBedCode      Field = "bed_code"
	FieldBedDesc      Field = "bed_desc"
	FieldBedQty       Field = "bed_qty"
	FieldServiceCode  Field = "service_code"
	FieldClassCode    Field = "class_code"
	FieldQualCode     Field = "qual_code"
	FieldQualDesc     Field = "qual_desc"
	FieldConvenio     Field = "convenio"
)

// Aliases lists the accepted source headers per field, most specific first.
var Aliases = map[Field][]string{
	FieldCNES:         {"CO_CNES", "CO_UNIDADE", "CNES", "CNES_ID"},
	FieldRazaoSocial:  {"NO_RAZAO_SOCIAL", "RAZAO_SOCIAL", "NOME_EMPRESARIAL"},
	FieldNomeFantasia: {"NO_FANTASIA", "NOME_FANTASIA", "NOME", "NO_ESTABELECIMENTO"},
	FieldTipoUnidade:  {"TP_UNIDADE", "CO_TIPO_UNIDADE", "TIPO_UNIDADE", "CO_TIPO_ESTABELECIMENTO"},
	FieldLogradouro:   {"NO_LOGRADOURO", "LOGRADOURO", "ENDERECO"},
	FieldNumero:       {"NU_ENDERECO", "NUMERO", "NU_NUMERO"},
	FieldComplemento:  {"NO_COMPLEMENTO", "COMPLEMENTO"},
	FieldBairro:       {"NO_BAIRRO", "BAIRRO"},
	FieldCEP:          {"CO_CEP", "CEP", "NU_CEP"},
	FieldMunicipio:    {"NO_MUNICIPIO", "MUNICIPIO", "CIDADE", "NOME_MUNICIPIO"},
	FieldCodMunicipio: {"CO_MUNICIPIO_GESTOR", "CO_MUNICIPIO", "CODUFMUN", "COD_MUNICIPIO"},
	FieldUF:           {"SG_UF", "UF", "CO_ESTADO_GESTOR", "CO_UF", "ESTADO"},
	FieldTelefone:     {"NU_TELEFONE", "TELEFONE", "FONE", "NU_TELEFONE_1"},
	FieldLatitude:     {"NU_LATITUDE", "LATITUDE", "LAT"},
	FieldLongitude:    {"NU_LONGITUDE", "LONGITUDE", "LON", "LNG"},
	FieldEsferaAdm:    {"DS_ESFERA_ADMINISTRATIVA", "ESFERA_ADMINISTRATIVA", "NO_ESFERA", "ESFERA"},
	FieldNatJurCode:   {"CO_NATUREZA_JUR", "CO_NATUREZA_JURIDICA", "NATUREZA_JURIDICA"},
	FieldNatJurText:   {"DS_NATUREZA_JUR", "DS_NATUREZA_JURIDICA", "NO_NATUREZA_JURIDICA"},
	FieldSUS:          {"ST_ATENDE_SUS", "ATENDE_SUS", "IN_ATENDE_SUS", "SUS"},
	FieldSUSAlt:       {"ST_CONTRATO_FORMALIZADO", "ATENDIMENTO_SUS", "TP_ATENDE_SUS"},
	FieldBedCode:      {"CO_LEITO", "CO_TIPO_LEITO", "TP_LEITO", "CODLEITO"},
	FieldBedDesc:      {"DS_LEITO", "NO_LEITO", "DS_TIPO_LEITO"},
	FieldBedQty:       {"QT_EXIST", "QT_EXISTENTE", "QT_LEITOS", "QT_SUS"},
	FieldServiceCode:  {"CO_SERVICO", "SERV_ESP", "CO_SERVICO_ESPECIALIZADO"},
	FieldClassCode:    {"CO_CLASSIFICACAO", "CLASS_SR", "CO_CLASSIFICACAO_SERVICO"},
	FieldQualCode:     {"CO_HABILITACAO", "CO_CODIGO_GRUPO", "SGRUPHAB"},
	FieldQualDesc:     {"DS_HABILITACAO", "NO_HABILITACAO", "DS_CODIGO_GRUPO"},
	FieldConvenio:     {"DS_CONVENIO", "NO_CONVENIO", "CONVENIO", "DS_PLANO"},
}

// ColumnMap maps resolved fields to column indexes.
type ColumnMap map[Field]int

// ResolveColumns resolves fields case-insensitively against header. Fields
// listed in required must be present.
func ResolveColumns(header []string, fields []Field, required ...Field) (ColumnMap, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		key = strings.Trim(key, `"`)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	cm := ColumnMap{}
	for _, f := range fields {
		for _, alias := range Aliases[f] {
			if i, ok := index[alias]; ok {
				cm[f] = i
				break
			}
		}
	}
	for _, f := range required {
		if _, ok := cm[f]; !ok {
			return nil, fmt.Errorf("required column %s not found (tried %s)", f, strings.Join(Aliases[f], ", "))
		}
	}
	return cm, nil
}

// Has reports whether the field was resolved.
func (cm ColumnMap) Has(f Field) bool {
	_, ok := cm[f]
	return ok
}

// Get returns the trimmed value of f in record, or "" when absent.
func (cm ColumnMap) Get(record []string, f Field) string {
	i, ok := cm[f]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
