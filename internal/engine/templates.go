package engine

import (
	"fmt"
	"strings"

	"github.com/vilaw/backend/internal/storage/models"
)

const (
	apologyText       = "Xin lỗi, tôi gặp sự cố khi xử lý câu hỏi của bạn. Vui lòng thử lại sau."
	apologyConfidence = 0.1
	dateLayout        = "02/01/2006"
)

var greetings = []string{
	"Xin chào! Tôi là trợ lý pháp lý AI của ViLaw. Tôi có thể giúp bạn tìm hiểu về pháp luật Việt Nam, tư vấn pháp lý và hỗ trợ soạn thảo hợp đồng. Bạn cần hỗ trợ gì?",
	"Chào bạn! Tôi là AI pháp lý, sẵn sàng hỗ trợ bạn về mọi vấn đề pháp luật. Hãy cho tôi biết bạn cần tư vấn về lĩnh vực nào?",
	"Xin chào! Tôi có thể giúp bạn tìm kiếm văn bản pháp luật, tư vấn pháp lý và soạn thảo hợp đồng. Bạn muốn hỏi gì?",
}

var generalSuggestions = []string{
	"Tìm kiếm luật doanh nghiệp",
	"Hướng dẫn soạn hợp đồng lao động",
	"Quy định về thuế thu nhập",
	"Luật giao thông đường bộ",
	"Quyền và nghĩa vụ của người lao động",
}

var legalSuggestions = map[string][]string{
	"business": {"Thành lập doanh nghiệp", "Quy định về vốn điều lệ", "Nghĩa vụ của chủ sở hữu", "Giải thể doanh nghiệp"},
	"labor":    {"Hợp đồng lao động", "Quy định về tiền lương", "Thời gian làm việc", "Nghỉ phép năm"},
	"civil":    {"Quyền sở hữu tài sản", "Hợp đồng dân sự", "Thừa kế tài sản", "Bồi thường thiệt hại"},
	"criminal": {"Các tội phạm hình sự", "Hình phạt và biện pháp", "Thủ tục tố tụng", "Quyền của bị can"},
}

var contractSuggestions = map[string][]string{
	"labor_contract": {
		"Hợp đồng lao động không xác định thời hạn",
		"Hợp đồng lao động xác định thời hạn",
		"Hợp đồng lao động theo mùa vụ",
		"Hợp đồng thử việc",
	},
	"commercial_contract": {
		"Hợp đồng mua bán hàng hóa",
		"Hợp đồng cung cấp dịch vụ",
		"Hợp đồng vận chuyển",
		"Hợp đồng bảo hiểm",
	},
	"rental_contract": {
		"Hợp đồng thuê nhà",
		"Hợp đồng thuê đất",
		"Hợp đồng thuê phương tiện",
		"Hợp đồng thuê thiết bị",
	},
}

var contractTemplates = map[string][]string{
	"labor_contract":      {"Hợp đồng lao động không xác định thời hạn", "Hợp đồng lao động xác định thời hạn", "Hợp đồng thử việc"},
	"commercial_contract": {"Hợp đồng mua bán hàng hóa", "Hợp đồng cung cấp dịch vụ", "Hợp đồng vận chuyển"},
	"rental_contract":     {"Hợp đồng thuê nhà", "Hợp đồng thuê đất", "Hợp đồng thuê phương tiện"},
}

var adviceSuggestions = []string{
	"Tìm luật sư tư vấn",
	"Liên hệ cơ quan nhà nước",
	"Tham khảo hướng dẫn pháp lý",
	"Chuẩn bị hồ sơ pháp lý",
	"Tìm hiểu quy trình thủ tục",
}

var helpSuggestions = []string{
	"Tìm kiếm văn bản pháp luật",
	"Soạn thảo hợp đồng",
	"Tư vấn pháp lý",
	"Hướng dẫn thủ tục",
	"Tra cứu quy định",
}

func suggestionsFor(table map[string][]string, subcategory string) []string {
	if s, ok := table[subcategory]; ok {
		return clone(s)
	}
	return clone(generalSuggestions)
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}

func legalText(docs []models.ScoredDocument, excerpt string) string {
	top := docs[0]

	var b strings.Builder
	fmt.Fprintf(&b, "Dựa trên %d văn bản pháp luật liên quan:\n\n", len(docs))
	fmt.Fprintf(&b, "📋 **%s**\n", top.Title)
	if !top.Date.IsZero() {
		fmt.Fprintf(&b, "📅 Ngày ban hành: %s\n", top.Date.Format(dateLayout))
	}
	if kind := documentKind(top.Document); kind != "" {
		fmt.Fprintf(&b, "📂 Loại: %s\n", kind)
	}
	fmt.Fprintf(&b, "🏛️ Nguồn: %s\n\n", top.Source)

	b.WriteString("**Nội dung liên quan:**\n")
	b.WriteString(excerpt)

	b.WriteString("\n\n⚠️ **Lưu ý quan trọng:**\n")
	b.WriteString("• Thông tin này chỉ mang tính chất tham khảo\n")
	b.WriteString("• Để có câu trả lời chính xác, hãy tham khảo luật sư\n")
	b.WriteString("• Luật có thể thay đổi, cần cập nhật thường xuyên\n")
	return b.String()
}

func documentKind(d models.Document) string {
	if d.Type != "" {
		return d.Type
	}
	return d.Category
}

func noResultsText(input string) string {
	return fmt.Sprintf("Tôi không tìm thấy văn bản pháp luật cụ thể liên quan đến %q. Tuy nhiên, tôi có thể giúp bạn:\n\n"+
		"• Tìm kiếm thông tin pháp luật khác\n"+
		"• Tư vấn về quy trình pháp lý\n"+
		"• Hướng dẫn soạn thảo hợp đồng\n\n"+
		"Bạn có thể hỏi cụ thể hơn về lĩnh vực nào?", input)
}

func contractText(subcategory string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Về %s, tôi có thể hỗ trợ bạn:\n\n", strings.Replace(subcategory, "_", " ", 1))

	b.WriteString("📄 **Các loại hợp đồng phổ biến:**\n")
	for _, name := range contractTemplates[subcategory] {
		fmt.Fprintf(&b, "• %s\n", name)
	}

	b.WriteString("\n**Hướng dẫn soạn thảo:**\n")
	b.WriteString("1. Xác định các bên tham gia\n")
	b.WriteString("2. Xác định đối tượng hợp đồng\n")
	b.WriteString("3. Quy định quyền và nghĩa vụ\n")
	b.WriteString("4. Xác định thời hạn và địa điểm\n")
	b.WriteString("5. Quy định về xử lý tranh chấp\n")

	b.WriteString("\n**Lưu ý quan trọng:**\n")
	b.WriteString("• Hợp đồng phải tuân thủ pháp luật\n")
	b.WriteString("• Cần có chữ ký của các bên\n")
	b.WriteString("• Nên tham khảo luật sư trước khi ký\n")
	return b.String()
}

const adviceText = "Tôi hiểu bạn cần tư vấn pháp lý. Dựa trên câu hỏi của bạn, tôi khuyên bạn:\n\n" +
	"🔍 **Bước 1: Tìm hiểu thông tin**\n" +
	"• Tìm kiếm văn bản pháp luật liên quan\n" +
	"• Tham khảo các quy định hiện hành\n" +
	"• Xem xét các trường hợp tương tự\n\n" +
	"📞 **Bước 2: Tìm kiếm hỗ trợ chuyên nghiệp**\n" +
	"• Tham khảo luật sư có kinh nghiệm\n" +
	"• Liên hệ cơ quan nhà nước có thẩm quyền\n" +
	"• Tham khảo ý kiến chuyên gia\n\n" +
	"📋 **Bước 3: Chuẩn bị hồ sơ**\n" +
	"• Thu thập tài liệu liên quan\n" +
	"• Chuẩn bị các bằng chứng cần thiết\n" +
	"• Lập kế hoạch hành động\n\n" +
	"⚠️ **Lưu ý:** Tư vấn này chỉ mang tính chất tham khảo. Để có câu trả lời chính xác, hãy tham khảo luật sư chuyên nghiệp."

const helpText = "Tôi có thể giúp bạn với các chức năng sau:\n\n" +
	"🔍 **Tìm kiếm pháp luật:**\n" +
	"• Tìm kiếm văn bản pháp luật\n" +
	"• Tra cứu quy định cụ thể\n" +
	"• Hướng dẫn thủ tục pháp lý\n\n" +
	"📄 **Soạn thảo hợp đồng:**\n" +
	"• Tạo hợp đồng mẫu\n" +
	"• Hướng dẫn điều khoản\n" +
	"• Kiểm tra tính hợp pháp\n\n" +
	"💬 **Tư vấn pháp lý:**\n" +
	"• Trả lời câu hỏi pháp luật\n" +
	"• Hướng dẫn quy trình\n" +
	"• Cung cấp thông tin cập nhật\n\n" +
	"Hãy cho tôi biết bạn cần hỗ trợ gì cụ thể!"

func generalText(input string) string {
	return fmt.Sprintf("Tôi hiểu bạn đang hỏi về %q. Tôi có thể giúp bạn tìm hiểu về pháp luật Việt Nam, "+
		"tư vấn pháp lý và hỗ trợ soạn thảo hợp đồng. Bạn có thể hỏi cụ thể hơn về lĩnh vực nào bạn quan tâm?", input)
}
