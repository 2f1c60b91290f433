package cbz

import (
	"encoding/xml"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shishobooks/longbox/pkg/models"
)

// ComicInfoFilename is the sidecar metadata file. Archives are matched
// case-insensitively.
const ComicInfoFilename = "ComicInfo.xml"

type ComicInfo struct {
	XMLName         xml.Name `xml:"ComicInfo"`
	Title           string   `xml:"Title,omitempty"`
	Series          string   `xml:"Series,omitempty"`
	Number          string   `xml:"Number,omitempty"`
	Count           string   `xml:"Count,omitempty"`
	Volume          string   `xml:"Volume,omitempty"`
	Summary         string   `xml:"Summary,omitempty"`
	Notes           string   `xml:"Notes,omitempty"`
	Year            string   `xml:"Year,omitempty"`
	Month           string   `xml:"Month,omitempty"`
	Day             string   `xml:"Day,omitempty"`
	StoreDate       string   `xml:"StoreDate,omitempty"`
	Writer          string   `xml:"Writer,omitempty"`
	Penciller       string   `xml:"Penciller,omitempty"`
	Inker           string   `xml:"Inker,omitempty"`
	Colorist        string   `xml:"Colorist,omitempty"`
	Letterer        string   `xml:"Letterer,omitempty"`
	CoverArtist     string   `xml:"CoverArtist,omitempty"`
	Editor          string   `xml:"Editor,omitempty"`
	Translator      string   `xml:"Translator,omitempty"`
	Publisher       string   `xml:"Publisher,omitempty"`
	Imprint         string   `xml:"Imprint,omitempty"`
	Genre           string   `xml:"Genre,omitempty"`
	Tags            string   `xml:"Tags,omitempty"`
	Web             string   `xml:"Web,omitempty"`
	PageCount       string   `xml:"PageCount,omitempty"`
	LanguageISO     string   `xml:"LanguageISO,omitempty"`
	Format          string   `xml:"Format,omitempty"`
	BlackAndWhite   string   `xml:"BlackAndWhite,omitempty"`
	Manga           string   `xml:"Manga,omitempty"`
	Characters      string   `xml:"Characters,omitempty"`
	Teams           string   `xml:"Teams,omitempty"`
	Locations       string   `xml:"Locations,omitempty"`
	StoryArc        string   `xml:"StoryArc,omitempty"`
	AgeRating       string   `xml:"AgeRating,omitempty"`
	CommunityRating string   `xml:"CommunityRating,omitempty"`
	GTIN            string   `xml:"GTIN,omitempty"`
	Pages           *struct {
		Page []ComicPageInfo `xml:"Page"`
	} `xml:"Pages,omitempty"`
}

type ComicPageInfo struct {
	Image       string `xml:"Image,attr"`
	Type        string `xml:"Type,attr,omitempty"`
	DoublePage  string `xml:"DoublePage,attr,omitempty"`
	ImageSize   string `xml:"ImageSize,attr,omitempty"`
	ImageWidth  string `xml:"ImageWidth,attr,omitempty"`
	ImageHeight string `xml:"ImageHeight,attr,omitempty"`
}

// fields lists the recognized scalar tags in document order. Metadata and
// ComicInfoFromMetadata both go through it so the two stay symmetric.
func (ci *ComicInfo) fields() []struct {
	tag string
	val *string
} {
	return []struct {
		tag string
		val *string
	}{
		{"Title", &ci.Title},
		{"Series", &ci.Series},
		{"Number", &ci.Number},
		{"Count", &ci.Count},
		{"Volume", &ci.Volume},
		{"Summary", &ci.Summary},
		{"Notes", &ci.Notes},
		{"Year", &ci.Year},
		{"Month", &ci.Month},
		{"Day", &ci.Day},
		{"StoreDate", &ci.StoreDate},
		{"Writer", &ci.Writer},
		{"Penciller", &ci.Penciller},
		{"Inker", &ci.Inker},
		{"Colorist", &ci.Colorist},
		{"Letterer", &ci.Letterer},
		{"CoverArtist", &ci.CoverArtist},
		{"Editor", &ci.Editor},
		{"Translator", &ci.Translator},
		{"Publisher", &ci.Publisher},
		{"Imprint", &ci.Imprint},
		{"Genre", &ci.Genre},
		{"Tags", &ci.Tags},
		{"Web", &ci.Web},
		{"PageCount", &ci.PageCount},
		{"LanguageISO", &ci.LanguageISO},
		{"Format", &ci.Format},
		{"BlackAndWhite", &ci.BlackAndWhite},
		{"Manga", &ci.Manga},
		{"Characters", &ci.Characters},
		{"Teams", &ci.Teams},
		{"Locations", &ci.Locations},
		{"StoryArc", &ci.StoryArc},
		{"AgeRating", &ci.AgeRating},
		{"CommunityRating", &ci.CommunityRating},
		{"GTIN", &ci.GTIN},
	}
}

func ParseComicInfo(r io.Reader) (*ComicInfo, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxComicInfoSize))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	comicInfo := &ComicInfo{}
	err = xml.Unmarshal(b, comicInfo)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return comicInfo, nil
}

// Metadata flattens the recognized tags into a record keyed by tag name.
// Values are trimmed and empty tags are dropped.
func (ci *ComicInfo) Metadata() models.ComicMetadata {
	md := models.ComicMetadata{}
	for _, f := range ci.fields() {
		if v := strings.TrimSpace(*f.val); v != "" {
			md[f.tag] = v
		}
	}
	return md
}

// ComicInfoFromMetadata is the inverse of Metadata. Keys that are not
// recognized tags are ignored.
func ComicInfoFromMetadata(md models.ComicMetadata) *ComicInfo {
	ci := &ComicInfo{}
	for _, f := range ci.fields() {
		*f.val = md.Get(f.tag)
	}
	return ci
}

// WriteComicInfo encodes ci as an indented ComicInfo.xml document.
func WriteComicInfo(w io.Writer, ci *ComicInfo) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return errors.WithStack(err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(ci); err != nil {
		return errors.WithStack(err)
	}
	_, err := io.WriteString(w, "\n")
	return errors.WithStack(err)
}

// SplitCreators splits a comma-separated credit field into trimmed names.
func SplitCreators(creators string) []string {
	if creators == "" {
		return nil
	}

	parts := strings.Split(creators, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

var issueNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)#(\d+(?:\.\d+)?)$`),   // matches #7 or #7.5
	regexp.MustCompile(`(?i)v(\d+(?:\.\d+)?)$`),   // matches v7 or v7.5
	regexp.MustCompile(`(?i)\s+(\d+(?:\.\d+)?)$`), // matches " 7" or " 7.5"
	regexp.MustCompile(`(?i)issue(\d+(?:\.\d+)?)$`),
}

// IssueNumber returns the issue number used to order comics within a series.
// The Number tag wins; otherwise the filename (without extension) is tried.
func IssueNumber(md models.ComicMetadata, nameWithoutExt string) *float64 {
	if n := md.Get("Number"); n != "" {
		if num, err := strconv.ParseFloat(n, 64); err == nil {
			return &num
		}
	}

	for _, re := range issueNumberPatterns {
		if matches := re.FindStringSubmatch(nameWithoutExt); len(matches) >= 2 {
			if num, err := strconv.ParseFloat(matches[1], 64); err == nil {
				return &num
			}
		}
	}

	return nil
}
