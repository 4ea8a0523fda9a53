package models

// Herb labels known to the classifier, in model output order
const (
	HerbCannabis       = "cannabis"
	HerbTurmeric       = "turmeric"
	HerbGinger         = "ginger"
	HerbBlackGalingale = "black_galingale"
	HerbPlai           = "plai"
	HerbKratom         = "kratom"
)

// SupportedHerbs lists the classifier taxonomy in model output order
var SupportedHerbs = []string{
	HerbCannabis,
	HerbTurmeric,
	HerbGinger,
	HerbBlackGalingale,
	HerbPlai,
	HerbKratom,
}

// BotanicalNames maps herb labels to scientific names
var BotanicalNames = map[string]string{
	HerbCannabis:       "Cannabis sativa L.",
	HerbTurmeric:       "Curcuma longa L.",
	HerbGinger:         "Zingiber officinale Roscoe",
	HerbBlackGalingale: "Kaempferia parviflora Wall. ex Baker",
	HerbPlai:           "Zingiber montanum (J.Koenig) Link ex A.Dietr.",
	HerbKratom:         "Mitragyna speciosa (Korth.) Havil.",
}

// SupportedFormats are the accepted upload extensions
var SupportedFormats = []string{"jpg", "jpeg", "png", "bmp", "tiff", "webp"}

// Document type labels, in document classifier output order
const (
	DocCommercialRegistration = "commercial_registration"
	DocLandDocument           = "land_document"
	DocFarmMap                = "farm_map"
	DocSoilTestReport         = "soil_test_report"
)

// DocumentTypes lists document classes in classifier output order
var DocumentTypes = []string{
	DocCommercialRegistration,
	DocLandDocument,
	DocFarmMap,
	DocSoilTestReport,
}

// DocumentThaiNames maps document types to their Thai names
var DocumentThaiNames = map[string]string{
	DocCommercialRegistration: "ทะเบียนพาณิชย์",
	DocLandDocument:           "เอกสารสิทธิ์ในที่ดิน",
	DocFarmMap:                "แผนผังฟาร์ม",
	DocSoilTestReport:         "รายงานผลตรวจดิน",
}

// UnknownDocumentThaiName is reported for unrecognized document types
const UnknownDocumentThaiName = "เอกสารไม่ระบุประเภท"
